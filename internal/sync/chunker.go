package sync

import "time"

// DateRange is an inclusive span of calendar dates.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Days returns the number of calendar days the range covers. It counts
// from the date components so DST transitions inside the range do not
// shift the result.
func (r DateRange) Days() int {
	start := time.Date(r.Start.Year(), r.Start.Month(), r.Start.Day(), 0, 0, 0, 0, time.UTC)
	end := time.Date(r.End.Year(), r.End.Month(), r.End.Day(), 0, 0, 0, 0, time.UTC)
	return int(end.Sub(start).Hours()/24) + 1
}

// SplitHalfYear splits [start, end] into calendar half-year chunks
// (Jan 1 - Jun 30, Jul 1 - Dec 31), clipping the last chunk to end.
// The chunks are ordered, non-overlapping and gap-free. A start after
// end yields no chunks; start equal to end yields one single-day chunk.
func SplitHalfYear(start, end time.Time) []DateRange {
	start = truncateDay(start)
	end = truncateDay(end)
	if start.After(end) {
		return nil
	}

	var chunks []DateRange
	cur := start
	for !cur.After(end) {
		var chunkEnd time.Time
		if cur.Month() <= time.June {
			chunkEnd = time.Date(cur.Year(), time.June, 30, 0, 0, 0, 0, cur.Location())
		} else {
			chunkEnd = time.Date(cur.Year(), time.December, 31, 0, 0, 0, 0, cur.Location())
		}
		if chunkEnd.After(end) {
			chunkEnd = end
		}

		chunks = append(chunks, DateRange{Start: cur, End: chunkEnd})
		cur = chunkEnd.AddDate(0, 0, 1)
	}
	return chunks
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
