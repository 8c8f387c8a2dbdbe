package dispatch

// Partition returns the items dealt to worker index when items are handed
// out round-robin across workers: index, index+workers, index+2*workers...
// A workers value below 1 is treated as 1. An index outside [0, workers)
// yields nil.
func Partition[T any](items []T, workers, index int) []T {
	if workers < 1 {
		workers = 1
	}
	if index < 0 || index >= workers || index >= len(items) {
		return nil
	}
	out := make([]T, 0, (len(items)-index+workers-1)/workers)
	for i := index; i < len(items); i += workers {
		out = append(out, items[i])
	}
	return out
}

// Split deals items into workers disjoint partitions whose union is items.
// Each partition keeps the relative order of its items.
func Split[T any](items []T, workers int) [][]T {
	if workers < 1 {
		workers = 1
	}
	parts := make([][]T, workers)
	for k := range parts {
		parts[k] = Partition(items, workers, k)
	}
	return parts
}
