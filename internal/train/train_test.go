package train

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"crisislens/internal/model"
)

var corpus = []struct {
	text string
	main string
}{
	{"house fire with heavy smoke", "Fire"},
	{"smoke coming from the kitchen", "Fire"},
	{"flames visible on the second floor fire", "Fire"},
	{"car on fire near the smoke filled garage", "Fire"},
	{"explosion and fire at the factory", "Fire"},
	{"chest pain and trouble breathing", "EMS"},
	{"person collapsed not breathing", "EMS"},
	{"severe chest pain possible heart attack", "EMS"},
	{"elderly man collapsed with chest pain", "EMS"},
	{"child having trouble breathing asthma", "EMS"},
	{"two car crash on the highway", "Traffic"},
	{"crash with injuries on the ring road", "Traffic"},
	{"multi vehicle crash blocking the highway", "Traffic"},
	{"truck crash spilled cargo on the highway", "Traffic"},
	{"hit and run crash near the school", "Traffic"},
}

func trainingSet() *Dataset {
	ds := &Dataset{}
	for _, c := range corpus {
		ds.Texts = append(ds.Texts, c.text)
		ds.Labels = append(ds.Labels, c.main)
	}
	return ds
}

func smallOptions() Options {
	opts := DefaultOptions()
	opts.Stage = "main_type"
	opts.MinDF = 1
	opts.NgramMax = 2
	opts.Rounds = 20
	return opts
}

func TestFitLearnsTrainingCorpus(t *testing.T) {
	ds := trainingSet()
	bundle, err := Fit(ds, smallOptions())
	if err != nil {
		t.Fatal(err)
	}
	if err := bundle.Validate(); err != nil {
		t.Fatalf("fitted bundle invalid: %v", err)
	}
	if got := bundle.Labels; len(got) != 3 || got[0] != "EMS" || got[1] != "Fire" || got[2] != "Traffic" {
		t.Fatalf("label encoder = %v, want sorted [EMS Fire Traffic]", got)
	}
	if acc := Evaluate(bundle, ds); acc < 0.9 {
		t.Fatalf("training accuracy %.2f, want >= 0.9", acc)
	}
	if pred, _ := bundle.Predict("huge fire and smoke everywhere"); pred != "Fire" {
		t.Fatalf("held-out fire call classified as %q", pred)
	}
}

func TestFitRejectsSingleClass(t *testing.T) {
	ds := &Dataset{
		Texts:  []string{"fire one", "fire two", "fire three"},
		Labels: []string{"Fire", "Fire", "Fire"},
	}
	if _, err := Fit(ds, smallOptions()); err == nil {
		t.Fatal("expected error for single-class dataset")
	}
}

func TestFittedBundleRoundtrips(t *testing.T) {
	bundle, err := Fit(trainingSet(), smallOptions())
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "main.bundle.json")
	if err := bundle.Save(path); err != nil {
		t.Fatal(err)
	}
	loaded, err := model.LoadBundle(path)
	if err != nil {
		t.Fatal(err)
	}
	want, _ := bundle.Predict("crash on the highway")
	got, _ := loaded.Predict("crash on the highway")
	if got != want {
		t.Fatalf("loaded bundle predicts %q, in-memory %q", got, want)
	}
}

func TestLoadDatasetCSVWithFilter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calls.csv")
	content := "Description,MainType,Subtype\n" +
		"house fire,Fire,Structural\n" +
		"chest pain,EMS,Cardiac\n" +
		"kitchen fire,Fire,Structural\n" +
		",Fire,Structural\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	ds, err := LoadDataset(path, LoadOptions{
		TextColumn:   "description",
		LabelColumn:  "subtype",
		FilterColumn: "maintype",
		FilterValue:  "fire",
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(ds.Texts) != 2 {
		t.Fatalf("expected 2 fire rows, got %d: %v", len(ds.Texts), ds.Texts)
	}
	for _, l := range ds.Labels {
		if l != "Structural" {
			t.Fatalf("unexpected label %q", l)
		}
	}
}

func TestLoadDatasetXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calls.xlsx")
	f := excelize.NewFile()
	rows := [][]any{
		{"Description", "MainType"},
		{"house fire", "Fire"},
		{"chest pain", "EMS"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatal(err)
		}
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatal(err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	ds, err := LoadDataset(path, LoadOptions{TextColumn: "Description", LabelColumn: "MainType"})
	if err != nil {
		t.Fatal(err)
	}
	if len(ds.Texts) != 2 || ds.Labels[0] != "Fire" || ds.Labels[1] != "EMS" {
		t.Fatalf("unexpected dataset: %+v", ds)
	}
}

func TestLoadDatasetMissingColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calls.csv")
	if err := os.WriteFile(path, []byte("Description\nfoo\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadDataset(path, LoadOptions{TextColumn: "Description", LabelColumn: "MainType"}); err == nil {
		t.Fatal("expected error for missing label column")
	}
}
