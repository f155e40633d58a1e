package catalog

import "time"

// Seed adds the demo events. Their tickets are released releaseDelay after
// start.
func Seed(c *Catalog, start time.Time, seatCount int, releaseDelay time.Duration) ([]string, error) {
	release := start.Add(releaseDelay)
	seeds := []struct {
		name string
		date time.Time
	}{
		{"Hallawinfest", time.Date(2024, 11, 5, 0, 0, 0, 0, time.Local)},
		{"Sommarfest", time.Date(2024, 11, 2, 0, 0, 0, 0, time.Local)},
		{"Studentfest", time.Date(2024, 11, 1, 0, 0, 0, 0, time.Local)},
	}
	ids := make([]string, 0, len(seeds))
	for _, s := range seeds {
		info, err := c.AddEvent(s.name, s.date, release, seatCount)
		if err != nil {
			return nil, err
		}
		ids = append(ids, info.ID)
	}
	return ids, nil
}
