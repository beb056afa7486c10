// Command gofit trains a small feed-forward image classifier on a
// synthetic dataset and writes the result as a JSON checkpoint. It
// exercises the full pipeline: flatten, scale, one-hot encode,
// shuffle, split, build, train, save.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"syscall"

	"gofit/checkpoints"
	"gofit/dataset"
	"gofit/layers"
	"gofit/net"
	"gofit/tensor"
	"gofit/training"
)

func main() {
	samples := flag.Int("samples", 2000, "Number of synthetic images to generate")
	imageSize := flag.Int("image-size", 8, "Side length of the square synthetic images")
	classes := flag.Int("classes", 4, "Number of classes")
	hidden := flag.Int("hidden", 64, "Hidden layer width")
	dropout := flag.Float64("dropout", 0.2, "Dropout rate after the hidden layer (0 disables)")
	epochs := flag.Int("epochs", 30, "Maximum number of epochs")
	batchSize := flag.Int("batch-size", 64, "Batch size")
	lr := flag.Float64("lr", 0.1, "Base learning rate")
	momentum := flag.Float64("momentum", 0.9, "SGD momentum")
	valSplit := flag.Float64("val-split", 0.2, "Validation fraction")
	patience := flag.Int("patience", 5, "Early stopping patience")
	seed := flag.Int64("seed", 42, "PRNG seed")
	out := flag.String("out", "model.json", "Checkpoint output path")
	logEvery := flag.Int("log-every", 1, "Print progress every N epochs (0 = silent)")

	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	images, labels := syntheticImages(*samples, *imageSize, *classes, *seed)

	flat, err := dataset.Flatten2D(images)
	if err != nil {
		log.Fatalf("failed to flatten images: %v", err)
	}

	scaler, err := dataset.NewScaler(0, 255)
	if err != nil {
		log.Fatalf("failed to build scaler: %v", err)
	}
	features := scaler.Apply(flat)

	oneHot, err := dataset.OneHot(labels, *classes)
	if err != nil {
		log.Fatalf("failed to encode labels: %v", err)
	}

	features, oneHot, _, err = dataset.Shuffle(features, oneHot, *seed)
	if err != nil {
		log.Fatalf("failed to shuffle dataset: %v", err)
	}

	data, err := dataset.New(features, oneHot)
	if err != nil {
		log.Fatalf("failed to build dataset: %v", err)
	}
	train, validation, err := data.Split(*valSplit)
	if err != nil {
		log.Fatalf("failed to split dataset: %v", err)
	}
	log.Printf("dataset: %d train, %d validation, %d features, %d classes",
		train.Len(), validation.Len(), features.RowSize(), *classes)

	builder := layers.NewModelBuilder([]int{*batchSize, features.RowSize()}).
		AddDense(*hidden, true, "fc1").
		AddReLU("relu1")
	if *dropout > 0 {
		builder.AddDropout(*dropout, "drop1")
	}
	model, err := builder.
		AddDense(*classes, true, "fc2").
		AddSoftmax("softmax").
		Compile()
	if err != nil {
		log.Fatalf("failed to compile model: %v", err)
	}
	fmt.Print(model.Summary())

	network, err := net.FromSpec(model, net.Config{Seed: *seed, Momentum: *momentum})
	if err != nil {
		log.Fatalf("failed to build network: %v", err)
	}

	cfg := training.DefaultConfig()
	cfg.LearningRate = *lr
	cfg.Momentum = *momentum
	cfg.BatchSize = *batchSize
	cfg.MaxEpochs = *epochs
	cfg.Seed = *seed
	cfg.PrintEvery = *logEvery
	cfg.EarlyStopping.Patience = *patience

	trainer, err := training.NewTrainer(model, network, cfg)
	if err != nil {
		log.Fatalf("failed to build trainer: %v", err)
	}

	history, err := trainer.Fit(ctx, train, validation)
	if err != nil {
		log.Fatalf("training failed: %v", err)
	}

	bestLoss, bestEpoch := history.BestValLoss()
	last := history.Last()
	log.Printf("run %s finished as %s after %d epochs", history.RunID, history.Final, history.Len())
	log.Printf("best val loss %.4f at epoch %d; final val accuracy %.2f%%",
		bestLoss, bestEpoch, last.ValAccuracy*100)

	if err := report(network, validation); err != nil {
		log.Fatalf("evaluation failed: %v", err)
	}

	checkpoint := &checkpoints.Checkpoint{
		ModelSpec: model,
		Weights:   network.ExportWeights(),
		TrainingState: checkpoints.TrainingState{
			Epoch:        last.Epoch,
			LearningRate: last.LearningRate,
			BestLoss:     bestLoss,
			BestAccuracy: last.ValAccuracy,
			FinalState:   history.Final.String(),
		},
		Metadata: checkpoints.Metadata{
			RunID:       history.RunID,
			Description: "synthetic blob classifier demo",
		},
	}
	if err := checkpoints.Save(checkpoint, *out); err != nil {
		log.Fatalf("failed to save checkpoint: %v", err)
	}
	log.Printf("checkpoint written to %s", *out)
}

// report prints the validation confusion metrics.
func report(network *net.Network, validation *dataset.Dataset) error {
	probs, err := network.Predict(validation.Features)
	if err != nil {
		return err
	}

	cm := training.NewConfusionMatrix(validation.NumClasses())
	if err := cm.Update(probs, validation.Labels); err != nil {
		return err
	}
	log.Printf("validation: accuracy %.2f%%, macro precision %.3f, macro recall %.3f, macro F1 %.3f",
		cm.Accuracy()*100, cm.MacroPrecision(), cm.MacroRecall(), cm.MacroF1())
	return nil
}

// syntheticImages generates square grayscale images whose brightest
// quadrant encodes the class, with additive noise. Pixel values are
// in [0, 255] like raw image bytes.
func syntheticImages(n, size, classes int, seed int64) (*tensor.Tensor, []int) {
	rng := rand.New(rand.NewSource(seed))
	half := size / 2

	data := make([]float32, n*size*size)
	labels := make([]int, n)

	for i := 0; i < n; i++ {
		class := rng.Intn(classes)
		labels[i] = class

		// Quadrant centers cycle for class counts above four.
		cy := (class % 2) * half
		cx := ((class / 2) % 2) * half

		base := i * size * size
		for y := 0; y < size; y++ {
			for x := 0; x < size; x++ {
				v := 32 + rng.Float64()*48
				if y >= cy && y < cy+half && x >= cx && x < cx+half {
					v += 128 + rng.Float64()*32
				}
				if v > 255 {
					v = 255
				}
				data[base+y*size+x] = float32(v)
			}
		}
	}

	images := &tensor.Tensor{Shape: []int{n, size, size}, Data: data}
	return images, labels
}
