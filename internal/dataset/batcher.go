package dataset

import (
	"fmt"
	"iter"
	"math/rand"
	"slices"
)

// Item is one batchable unit: a segment waveform plus its provenance and an
// optional speaker label from diarization (-1 when unknown).
type Item struct {
	RecordingID  string
	SegmentIndex int
	Samples      []float32
	SpeakerLabel int
}

// Batch is an ordered group of items right-padded to a common length.
//
// Waveforms[i] and Masks[i] have identical length (the batch-wide padded
// length); Masks[i][j] is 1 inside the first Lengths[i] positions and 0 in
// the padding. SpeakerLabels aligns with the items, -1 meaning unlabelled.
type Batch struct {
	Items         []Item
	Waveforms     [][]float32
	Masks         [][]float32
	Lengths       []int
	SpeakerLabels []int
}

// Batcher produces lazy, restartable batch streams for one split.
//
// Iteration order is deterministic: the train split is shuffled by a
// generator derived from the dataset seed and the epoch number, while val and
// test are always served in sorted (recording ID, segment index) order so
// evaluation runs are reproducible. Each Batches call yields an independent
// stream — concurrent consumers do not share a cursor.
type Batcher struct {
	split     Split
	items     []Item
	batchSize int
	seed      int64
}

// NewBatcher builds a batcher over the split's items. Fails with
// ErrEmptySplit when no items are eligible.
func NewBatcher(split Split, items []Item, batchSize int, seed int64) (*Batcher, error) {
	if !split.IsValid() {
		return nil, fmt.Errorf("dataset: unknown split %q", split)
	}
	if batchSize < 1 {
		return nil, fmt.Errorf("dataset: batch size %d must be at least 1", batchSize)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptySplit, split)
	}

	sorted := slices.Clone(items)
	slices.SortFunc(sorted, func(a, b Item) int {
		if a.RecordingID != b.RecordingID {
			if a.RecordingID < b.RecordingID {
				return -1
			}
			return 1
		}
		return a.SegmentIndex - b.SegmentIndex
	})
	return &Batcher{split: split, items: sorted, batchSize: batchSize, seed: seed}, nil
}

// Len returns the number of items in the split.
func (b *Batcher) Len() int {
	return len(b.items)
}

// Batches returns a lazy sequence of batches for the given epoch. The final
// batch may be smaller than the configured batch size.
func (b *Batcher) Batches(epoch int) iter.Seq[Batch] {
	order := make([]int, len(b.items))
	for i := range order {
		order[i] = i
	}
	if b.split == SplitTrain {
		// Seed derivation keeps epochs distinct but reproducible: the same
		// seed and epoch always yield the same order.
		rng := rand.New(rand.NewSource(b.seed + int64(epoch)))
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	}

	return func(yield func(Batch) bool) {
		for start := 0; start < len(order); start += b.batchSize {
			end := min(start+b.batchSize, len(order))
			group := make([]Item, 0, end-start)
			for _, idx := range order[start:end] {
				group = append(group, b.items[idx])
			}
			if !yield(collate(group)) {
				return
			}
		}
	}
}

// collate right-pads a group of items to its longest waveform and builds the
// validity masks.
func collate(items []Item) Batch {
	maxLen := 0
	for _, it := range items {
		maxLen = max(maxLen, len(it.Samples))
	}

	batch := Batch{
		Items:         items,
		Waveforms:     make([][]float32, len(items)),
		Masks:         make([][]float32, len(items)),
		Lengths:       make([]int, len(items)),
		SpeakerLabels: make([]int, len(items)),
	}
	for i, it := range items {
		wave := make([]float32, maxLen)
		mask := make([]float32, maxLen)
		copy(wave, it.Samples)
		for j := range len(it.Samples) {
			mask[j] = 1
		}
		batch.Waveforms[i] = wave
		batch.Masks[i] = mask
		batch.Lengths[i] = len(it.Samples)
		batch.SpeakerLabels[i] = it.SpeakerLabel
	}
	return batch
}
