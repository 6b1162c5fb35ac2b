package detect

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeCandidates(t *testing.T) {
	t.Parallel()

	t.Run("groups close candidates and averages geometry", func(t *testing.T) {
		t.Parallel()
		candidates := []Candidate{
			{CX: 100, CY: 100, Radius: 30, Area: 2800, Circularity: 0.6, Darkness: 0.5, Source: SourceContour},
			{CX: 104, CY: 100, Radius: 32, Area: math.Pi * 32 * 32, Circularity: 1.0, Darkness: 0.7, Source: SourceHough},
			{CX: 300, CY: 100, Radius: 30, Area: 2700, Circularity: 0.5, Darkness: 0.4, Source: SourceContour},
		}

		merged := mergeCandidates(candidates)
		require.Len(t, merged, 2)

		assert.InDelta(t, 102, merged[0].CX, 1e-9)
		assert.InDelta(t, 31, merged[0].Radius, 1e-9)
		assert.Equal(t, 0.5, merged[0].Darkness)
		assert.Equal(t, 1.0, merged[0].Circularity)
		assert.Equal(t, 2, merged[0].Sources)

		assert.Equal(t, 1, merged[1].Sources)
		assert.Equal(t, 300.0, merged[1].CX)
	})

	t.Run("distance threshold uses smaller radius", func(t *testing.T) {
		t.Parallel()
		// 0.8 * 10 = 8 < 9: stays separate even though 0.8 * 40 would merge
		candidates := []Candidate{
			{CX: 0, CY: 0, Radius: 40, Area: 5000},
			{CX: 9, CY: 0, Radius: 10, Area: 300},
		}
		assert.Len(t, mergeCandidates(candidates), 2)
	})
}

func TestSeparationInvariant(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewSource(42))

	for trial := 0; trial < 50; trial++ {
		candidates := make([]Candidate, 40)
		for i := range candidates {
			r := 10 + rng.Float64()*30
			candidates[i] = Candidate{
				CX:          rng.Float64() * 400,
				CY:          rng.Float64() * 300,
				Radius:      r,
				Area:        math.Pi * r * r,
				Circularity: rng.Float64(),
				Darkness:    rng.Float64(),
			}
		}

		regions := enforceSeparation(rankRegions(filterRadiusOutliers(mergeCandidates(candidates))))
		for i := range regions {
			for j := i + 1; j < len(regions); j++ {
				a, b := regions[i], regions[j]
				dist := math.Hypot(a.CX-b.CX, a.CY-b.CY)
				assert.GreaterOrEqual(t, dist, math.Min(a.Radius, b.Radius)*mergeDistanceFactor,
					"trial %d: regions %d and %d too close", trial, i, j)
			}
		}
	}
}

func TestFilterRadiusOutliers(t *testing.T) {
	t.Parallel()

	t.Run("keeps everything with two or fewer", func(t *testing.T) {
		t.Parallel()
		regions := []Region{{Radius: 1}, {Radius: 100}}
		assert.Len(t, filterRadiusOutliers(regions), 2)
	})

	t.Run("drops radii outside median band", func(t *testing.T) {
		t.Parallel()
		regions := []Region{{Radius: 30}, {Radius: 32}, {Radius: 28}, {Radius: 5}, {Radius: 120}}
		kept := filterRadiusOutliers(regions)
		require.Len(t, kept, 3)
		for _, r := range kept {
			assert.InDelta(t, 30, r.Radius, 2)
		}
	})
}

func TestRankRegions(t *testing.T) {
	t.Parallel()
	regions := []Region{
		{CX: 1, Darkness: 0.9, Circularity: 0.5, Sources: 1},
		{CX: 2, Darkness: 0.3, Circularity: 0.9, Sources: 5},
	}

	ranked := rankRegions(regions)
	require.Len(t, ranked, 2)
	assert.Equal(t, 2.0, ranked[0].CX)
	// (1-0.3)*40 + 0.9*30 + min(5,3)*10
	assert.InDelta(t, 28+27+30, ranked[0].Score, 1e-9)
	assert.InDelta(t, 4+15+10, ranked[1].Score, 1e-9)
}

func TestReadingOrder(t *testing.T) {
	t.Parallel()
	regions := []Region{
		{CX: 300, CY: 205, Radius: 20},
		{CX: 100, CY: 52, Radius: 20},
		{CX: 100, CY: 200, Radius: 20},
		{CX: 300, CY: 48, Radius: 20},
		{CX: 200, CY: 50, Radius: 20},
	}

	ordered := readingOrder(regions)
	var xs, ys []float64
	for _, r := range ordered {
		xs = append(xs, r.CX)
		ys = append(ys, r.CY)
	}
	assert.Equal(t, []float64{100, 200, 300, 100, 300}, xs)
	assert.Equal(t, []float64{52, 50, 48, 200, 205}, ys)
}

func TestConfidence(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "", Confidence(3, 0))
	assert.Equal(t, "high", Confidence(3, 3))
	assert.Equal(t, "low", Confidence(2, 3))
	assert.Equal(t, "medium", Confidence(4, 3))
}

func TestQuantile(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 0.0, quantile(nil, 50))
	assert.Equal(t, 3.0, quantile([]uint8{5, 1, 3}, 50))
	assert.Equal(t, 2.5, quantile([]uint8{4, 1, 3, 2}, 50))
	assert.Equal(t, 4.0, quantile([]uint8{4, 1, 3, 2}, 100))
}

func syntheticDisk(w, h, cx, cy, radius int, fg, bg uint8) grayImage {
	pix := make([]uint8, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dx, dy := x-cx, y-cy
			if dx*dx+dy*dy <= radius*radius {
				pix[y*w+x] = fg
			} else {
				pix[y*w+x] = bg
			}
		}
	}
	return grayImage{pix: pix, w: w, h: h}
}

func TestMeanInCircle(t *testing.T) {
	t.Parallel()
	img := syntheticDisk(100, 100, 50, 50, 20, 40, 200)
	assert.Equal(t, 40.0, img.meanInCircle(50, 50, 16))
	assert.Equal(t, 200.0, img.meanInCircle(5, 5, 3))
}

func TestRefineRadius(t *testing.T) {
	t.Parallel()

	t.Run("grows under-sized radius to the disk edge", func(t *testing.T) {
		t.Parallel()
		img := syntheticDisk(200, 200, 100, 100, 40, 50, 220)
		refined := img.refineRadius(Region{CX: 100, CY: 100, Radius: 30}, 220, 90)
		assert.InDelta(t, 41, refined, 1.0)
	})

	t.Run("never shrinks", func(t *testing.T) {
		t.Parallel()
		img := syntheticDisk(200, 200, 100, 100, 20, 50, 220)
		refined := img.refineRadius(Region{CX: 100, CY: 100, Radius: 30}, 220, 90)
		assert.Equal(t, 30.0, refined)
	})

	t.Run("bounded by growth limit", func(t *testing.T) {
		t.Parallel()
		img := syntheticDisk(200, 200, 100, 100, 80, 50, 220)
		refined := img.refineRadius(Region{CX: 100, CY: 100, Radius: 20}, 220, 90)
		assert.Equal(t, 20.0, refined)
	})
}
