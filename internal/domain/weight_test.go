package domain

import "testing"

func TestClassifyWeight(t *testing.T) {
	tests := []struct {
		name  string
		post  Post
		asset Asset
		want  PostWeight
	}{
		{name: "carousel is heavy", post: Post{Format: FormatCarousel}, want: WeightHeavy},
		{name: "reel is heavy", post: Post{Format: FormatReel}, want: WeightHeavy},
		{name: "long video is heavy", post: Post{Format: FormatLongVideo}, want: WeightHeavy},
		{name: "single image is light", post: Post{Format: FormatSingleImage}, want: WeightLight},
		{name: "text is light", post: Post{Format: FormatText}, want: WeightLight},
		{name: "falls back to asset format", post: Post{}, asset: Asset{Format: FormatReel}, want: WeightHeavy},
		{name: "no signals means light", post: Post{}, asset: Asset{}, want: WeightLight},
		{name: "unknown format means light", post: Post{Format: AssetFormat("hologram")}, want: WeightLight},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyWeight(tt.post, tt.asset); got != tt.want {
				t.Fatalf("ClassifyWeight() = %v, want %v", got, tt.want)
			}
		})
	}
}
