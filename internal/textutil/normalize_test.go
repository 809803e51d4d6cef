package textutil

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Attack on Titan", "attack on titan"},
		{"The Promised Neverland", "promised neverland"},
		{"A Silent Voice Movie", "silent voice"},
		{"Shingeki no Kyojin Season 3", "shingeki no kyojin"},
		{"Jujutsu Kaisen 2nd Season", "jujutsu kaisen"},
		{"Show Name S2", "show name"},
		{"Hunter x Hunter (2011)", "hunter x hunter"},
		{"Hunter x Hunter 2011", "hunter x hunter"},
		{"Steins;Gate", "steins gate"},
		{"Re:Zero - Starting Life", "re zero starting life"},
		{"  Kaguya-sama:   Love is War!! ", "kaguya sama love is war"},
		{"ＦＵＬＬ Metal Alchemist", "full metal alchemist"},
		{"Mushishi OVA", "mushishi"},
		{"Mushishi TV.", "mushishi"},
		{"Show (TV)", "show"},
		{"Show 12345", "show 12345"},
		{"Show 1999", "show"},
		{"", ""},
		{"!!!", ""},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeIgnoresCaseAndPunctuation(t *testing.T) {
	groups := [][]string{
		{
			"Frieren: Beyond Journey's End",
			"frieren beyond journey s end",
			"  FRIEREN -- BEYOND JOURNEY'S END  ",
			"Frieren_Beyond.Journey's.End",
		},
		{"The Promised Neverland", `"The Promised Neverland"`, "(the promised neverland)"},
		{"Mushishi TV", "Mushishi TV.", "mushishi [tv]"},
		{"Show TV", "Show (TV)", "SHOW - TV"},
		{"Hunter x Hunter 2011", "Hunter x Hunter (2011)", "Hunter x Hunter, 2011."},
	}
	for _, variants := range groups {
		want := Normalize(variants[0])
		for _, v := range variants[1:] {
			if got := Normalize(v); got != want {
				t.Errorf("Normalize(%q) = %q, want %q", v, got, want)
			}
		}
	}
}

func TestNormalizeKeepsNonLatinScripts(t *testing.T) {
	if got := Normalize("Атака Титанов"); got != "атака титанов" {
		t.Fatalf("unexpected cyrillic normalization %q", got)
	}
	if got := Normalize("進撃の巨人"); got != "進撃の巨人" {
		t.Fatalf("unexpected japanese normalization %q", got)
	}
}
