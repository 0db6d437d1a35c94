package render

import (
	"image"
	"image/color"
	"strconv"
	"time"

	"golang.org/x/image/font/basicfont"
)

// ActivityBuckets is the number of 20-minute buckets in the activity graph;
// together they cover the same 120 minutes as the strike age color scale.
const ActivityBuckets = 6

// activityBucketSize is the width of one bucket.
const activityBucketSize = 20 * time.Minute

// activityImage draws a bar graph of strike counts per 20-minute age bucket.
// counts[0] is the newest bucket (age < 20 min), counts[5] the oldest. Bars
// run oldest to newest, left to right, height scaled to the busiest bucket,
// which also gets its count as a rotated label.
func activityImage(counts [ActivityBuckets]int) *image.RGBA {
	const barWidth = 9
	const barPitch = 10

	img := image.NewRGBA(image.Rect(0, 0, ActivityBuckets*barPitch+3, 75))
	height := img.Bounds().Dy()

	lineColor := color.RGBA{0, 0, 0, 255}
	vline(img, 0, 0, height-1, lineColor)
	hline(img, 0, img.Bounds().Dx()-1, height-1, lineColor)

	maxCount := 0
	maxBucket := 0
	for i, n := range counts {
		if n > maxCount {
			maxCount = n
			maxBucket = i
		}
	}
	if maxCount == 0 {
		return img
	}

	for i, n := range counts {
		// Oldest bucket leftmost; bucket i covers [i*20, (i+1)*20) minutes.
		x := 1 + (ActivityBuckets-1-i)*barPitch
		y := height - 2
		barTop := y - int(float64(n)/float64(maxCount)*float64(height)) + 2
		for yy := barTop; yy <= y; yy++ {
			hline(img, x, x+barWidth-1, yy, AgeColor(time.Duration(i)*activityBucketSize))
		}
		if i == maxBucket {
			label := rotate90(textImage(basicfont.Face7x13, strconv.Itoa(maxCount), color.RGBA{0, 0, 0, 255}))
			pasteOver(img, label, x-1, 0)
		}
	}

	return img
}

// BucketStrikes tallies strikes into the activity buckets by age. Strikes
// older than the graph window are dropped.
func BucketStrikes(strikes []Strike, now time.Time) [ActivityBuckets]int {
	var counts [ActivityBuckets]int
	for _, s := range strikes {
		age := now.Sub(s.Time)
		if age < 0 {
			age = 0
		}
		bucket := int(age / activityBucketSize)
		if bucket >= ActivityBuckets {
			continue
		}
		counts[bucket]++
	}
	return counts
}
