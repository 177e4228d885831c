// Command crisislens-train fits one classification bundle from a labeled
// call export and writes the artifact the service loads at startup.
//
// Train the cascade with one run per stage:
//
//	crisislens-train -data calls.xlsx -text-col Description -label-col MainType -stage main_type -out models/main_type.bundle.json
//	crisislens-train -data calls.xlsx -text-col Description -label-col Subtype -filter-col MainType -filter-val Fire -stage subtype_fire -out models/subtype_fire.bundle.json
package main

import (
	"flag"
	"log"

	"crisislens/internal/train"
)

func main() {
	var (
		data      = flag.String("data", "", "path to the labeled dataset (.csv or .xlsx)")
		out       = flag.String("out", "", "path to write the bundle artifact")
		stage     = flag.String("stage", "main_type", "stage name recorded in the bundle")
		textCol   = flag.String("text-col", "Description", "column holding the call description")
		labelCol  = flag.String("label-col", "", "column holding the target label")
		filterCol = flag.String("filter-col", "", "optional column to filter rows on")
		filterVal = flag.String("filter-val", "", "value the filter column must equal")

		rounds   = flag.Int("rounds", 0, "boosting rounds (0 uses the default)")
		depth    = flag.Int("max-depth", 0, "tree depth limit (0 uses the default)")
		rate     = flag.Float64("learning-rate", 0, "shrinkage per round (0 uses the default)")
		minDF    = flag.Int("min-df", 0, "minimum document frequency for vocabulary terms (0 uses the default)")
		maxFeats = flag.Int("max-features", 0, "vocabulary size cap (0 uses the default)")
	)
	flag.Parse()

	if *data == "" || *out == "" || *labelCol == "" {
		log.Fatal("usage: crisislens-train -data FILE -out FILE -label-col NAME [options]")
	}
	if (*filterCol == "") != (*filterVal == "") {
		log.Fatal("-filter-col and -filter-val must be set together")
	}

	ds, err := train.LoadDataset(*data, train.LoadOptions{
		TextColumn:   *textCol,
		LabelColumn:  *labelCol,
		FilterColumn: *filterCol,
		FilterValue:  *filterVal,
	})
	if err != nil {
		log.Fatalf("load dataset: %v", err)
	}
	log.Printf("dataset: rows=%d stage=%s", len(ds.Texts), *stage)

	opts := train.DefaultOptions()
	opts.Stage = *stage
	if *rounds > 0 {
		opts.Rounds = *rounds
	}
	if *depth > 0 {
		opts.MaxDepth = *depth
	}
	if *rate > 0 {
		opts.LearningRate = *rate
	}
	if *minDF > 0 {
		opts.MinDF = *minDF
	}
	if *maxFeats > 0 {
		opts.MaxFeatures = *maxFeats
	}

	bundle, err := train.Fit(ds, opts)
	if err != nil {
		log.Fatalf("fit: %v", err)
	}
	log.Printf("fitted: classes=%v features=%d trees=%d accuracy=%.3f",
		bundle.Labels, len(bundle.Vectorizer.IDF), len(bundle.Classifier.Trees), train.Evaluate(bundle, ds))

	if err := bundle.Save(*out); err != nil {
		log.Fatalf("save bundle: %v", err)
	}
	log.Printf("bundle written: %s", *out)
}
