package music

import (
	"testing"
)

func validTrack() *Track {
	return &Track{
		ID:       NewTrackID(),
		Title:    "Song A",
		AlbumID:  "album-1",
		Filename: "trackA.mp3",
		Duration: 120,
		Paths:    map[string]string{TierOriginal: "original/a/demo/t1/song_a_original.mp3"},
	}
}

func TestTrackValidate_OK(t *testing.T) {
	if err := validTrack().Validate(); err != nil {
		t.Fatalf("expected valid track, got %v", err)
	}
}

func TestTrackValidate_RequiredFields(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Track)
	}{
		{"empty title", func(tr *Track) { tr.Title = "  " }},
		{"empty album", func(tr *Track) { tr.AlbumID = "" }},
		{"zero duration", func(tr *Track) { tr.Duration = 0 }},
		{"negative duration", func(tr *Track) { tr.Duration = -3 }},
		{"missing original path", func(tr *Track) { delete(tr.Paths, TierOriginal) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tr := validTrack()
			tc.mutate(tr)
			err := tr.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !IsValidation(err) {
				t.Errorf("expected validation kind, got %v", KindOf(err))
			}
		})
	}
}

func TestValidateSplits(t *testing.T) {
	cases := []struct {
		name   string
		splits []Split
		ok     bool
	}{
		{"empty is valid", nil, true},
		{"single 100", []Split{{Name: "A", Percentage: 100}}, true},
		{"even split", []Split{{Name: "A", Percentage: 50}, {Name: "B", Percentage: 50}}, true},
		{"within tolerance", []Split{{Name: "A", Percentage: 33.33}, {Name: "B", Percentage: 33.33}, {Name: "C", Percentage: 33.34}}, true},
		{"sums short", []Split{{Name: "A", Percentage: 60}, {Name: "B", Percentage: 30}}, false},
		{"sums over", []Split{{Name: "A", Percentage: 70}, {Name: "B", Percentage: 40}}, false},
		{"negative share", []Split{{Name: "A", Percentage: -10}, {Name: "B", Percentage: 110}}, false},
		{"unnamed writer", []Split{{Name: " ", Percentage: 100}}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateSplits("writers", tc.splits)
			if tc.ok && err != nil {
				t.Fatalf("expected valid splits, got %v", err)
			}
			if !tc.ok && err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestTrackValidate_SplitsCheckedIndependently(t *testing.T) {
	tr := validTrack()
	tr.Writers = []Split{{Name: "W", Percentage: 100}}
	tr.Publishers = []Split{{Name: "P", Percentage: 95}}
	if err := tr.Validate(); err == nil {
		t.Fatal("expected publisher split to fail independently of writers")
	}
}

func TestMissingTiers(t *testing.T) {
	tr := validTrack()
	tr.Paths["medium"] = "transcoded/a/demo/t1/song_a_medium.m4a"
	missing := tr.MissingTiers([]string{TierOriginal, "medium", "low"})
	if len(missing) != 1 || missing[0] != "low" {
		t.Fatalf("expected [low], got %v", missing)
	}
}

func TestTrackUpdateValidate(t *testing.T) {
	bad := "  "
	u := &TrackUpdate{Title: &bad}
	if err := u.Validate(); err == nil {
		t.Fatal("expected empty title to be rejected")
	}
	splits := []Split{{Name: "A", Percentage: 40}}
	u = &TrackUpdate{Writers: &splits}
	if err := u.Validate(); err == nil {
		t.Fatal("expected short writer sum to be rejected")
	}
}
