package dataset_test

import (
	"errors"
	"iter"
	"slices"
	"testing"

	"github.com/taglish/masr/internal/dataset"
)

// makeItems builds n items with distinct lengths so padding is exercised.
func makeItems(n int) []dataset.Item {
	items := make([]dataset.Item, n)
	for i := range items {
		samples := make([]float32, 100+i*10)
		for j := range samples {
			samples[j] = float32(i + 1)
		}
		items[i] = dataset.Item{
			RecordingID:  "rec",
			SegmentIndex: i,
			Samples:      samples,
			SpeakerLabel: -1,
		}
	}
	return items
}

// batchOrder flattens a batch stream to segment indexes, for order checks.
func batchOrder(b *dataset.Batcher, epoch int) []int {
	var order []int
	for batch := range b.Batches(epoch) {
		for _, it := range batch.Items {
			order = append(order, it.SegmentIndex)
		}
	}
	return order
}

func TestBatcherPaddingAndMasks(t *testing.T) {
	b, err := dataset.NewBatcher(dataset.SplitVal, makeItems(3), 3, 42)
	if err != nil {
		t.Fatal(err)
	}

	var batches []dataset.Batch
	for batch := range b.Batches(0) {
		batches = append(batches, batch)
	}
	if len(batches) != 1 {
		t.Fatalf("got %d batches, want 1", len(batches))
	}
	batch := batches[0]

	// Longest item is 120 samples; everything pads to that.
	for i := range batch.Items {
		if len(batch.Waveforms[i]) != 120 || len(batch.Masks[i]) != 120 {
			t.Errorf("item %d padded to %d, want 120", i, len(batch.Waveforms[i]))
		}
		length := batch.Lengths[i]
		for j, m := range batch.Masks[i] {
			want := float32(0)
			if j < length {
				want = 1
			}
			if m != want {
				t.Fatalf("item %d mask[%d] = %f, want %f", i, j, m, want)
			}
		}
		// Right padding: real samples first, zeros after.
		for j := length; j < 120; j++ {
			if batch.Waveforms[i][j] != 0 {
				t.Fatalf("item %d padding sample %d = %f, want 0", i, j, batch.Waveforms[i][j])
			}
		}
	}
}

func TestBatcherFinalPartialBatch(t *testing.T) {
	b, err := dataset.NewBatcher(dataset.SplitTest, makeItems(7), 3, 42)
	if err != nil {
		t.Fatal(err)
	}
	var sizes []int
	for batch := range b.Batches(0) {
		sizes = append(sizes, len(batch.Items))
	}
	if !slices.Equal(sizes, []int{3, 3, 1}) {
		t.Errorf("batch sizes = %v, want [3 3 1]", sizes)
	}
}

func TestTrainShuffleDeterministic(t *testing.T) {
	items := makeItems(30)

	a, err := dataset.NewBatcher(dataset.SplitTrain, items, 4, 42)
	if err != nil {
		t.Fatal(err)
	}
	b, err := dataset.NewBatcher(dataset.SplitTrain, items, 4, 42)
	if err != nil {
		t.Fatal(err)
	}

	if !slices.Equal(batchOrder(a, 0), batchOrder(b, 0)) {
		t.Error("same seed and epoch gave different train order")
	}
	if slices.Equal(batchOrder(a, 0), batchOrder(a, 1)) {
		t.Error("consecutive epochs gave identical train order")
	}

	c, err := dataset.NewBatcher(dataset.SplitTrain, items, 4, 99)
	if err != nil {
		t.Fatal(err)
	}
	if slices.Equal(batchOrder(a, 0), batchOrder(c, 0)) {
		t.Error("different seeds gave identical train order")
	}
}

func TestEvalSplitsNeverShuffled(t *testing.T) {
	want := make([]int, 10)
	for i := range want {
		want[i] = i
	}
	for _, split := range []dataset.Split{dataset.SplitVal, dataset.SplitTest} {
		b, err := dataset.NewBatcher(split, makeItems(10), 4, 42)
		if err != nil {
			t.Fatal(err)
		}
		// Requesting the split twice (and across epochs) yields identical,
		// sorted order.
		for _, epoch := range []int{0, 1, 5} {
			if got := batchOrder(b, epoch); !slices.Equal(got, want) {
				t.Errorf("%s epoch %d order = %v, want %v", split, epoch, got, want)
			}
		}
	}
}

func TestIndependentStreams(t *testing.T) {
	b, err := dataset.NewBatcher(dataset.SplitTrain, makeItems(20), 4, 42)
	if err != nil {
		t.Fatal(err)
	}

	// Two interleaved consumers of the same epoch see the same sequence:
	// no shared cursor.
	next1, stop1 := iter.Pull(b.Batches(0))
	defer stop1()
	next2, stop2 := iter.Pull(b.Batches(0))
	defer stop2()

	for {
		b1, ok1 := next1()
		b2, ok2 := next2()
		if ok1 != ok2 {
			t.Fatal("streams ended at different points")
		}
		if !ok1 {
			break
		}
		for i := range b1.Items {
			if b1.Items[i].SegmentIndex != b2.Items[i].SegmentIndex {
				t.Fatal("interleaved streams diverged")
			}
		}
	}
}

func TestEmptySplit(t *testing.T) {
	_, err := dataset.NewBatcher(dataset.SplitTrain, nil, 4, 42)
	if !errors.Is(err, dataset.ErrEmptySplit) {
		t.Errorf("err = %v, want ErrEmptySplit", err)
	}
}
