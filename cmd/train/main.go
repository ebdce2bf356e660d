// Command train wires the pipeline end to end: dataset registry lookup,
// feature derivation, model construction, optimizer and learning-rate
// schedule, then a few demonstration steps with structured logs. The full
// training loop (checkpointing, metric aggregation, early stopping) lives
// outside this repository.
package main

import (
	"flag"
	"os"

	"github.com/rs/zerolog"

	"brainnet"
	"brainnet/dataset"
	"brainnet/model"
	"brainnet/optim"
	"brainnet/schedule"
)

func main() {
	configPath := flag.String("config", "", "JSON config file (defaults used when empty)")
	steps := flag.Int("steps", 5, "demonstration steps to run")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	cfg := brainnet.Default()
	if *configPath != "" {
		loaded, err := brainnet.Load(*configPath)
		if err != nil {
			log.Fatal().Err(err).Msg("load config")
		}
		cfg = loaded
	} else if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("validate config")
	}
	log.Info().
		Str("project", cfg.Project).
		Str("dataset", cfg.Dataset.Name).
		Str("model", cfg.Model.Name).
		Str("schedule", cfg.Model.Scheduler.Mode).
		Msg("experiment configured")

	loader, err := dataset.Lookup(cfg.Dataset.Name)
	if err != nil {
		log.Fatal().Err(err).Msg("dataset lookup")
	}
	ts, labels, err := loader.Load(cfg.Dataset)
	if err != nil {
		log.Fatal().Err(err).Msg("dataset load")
	}

	if cfg.Dataset.TuningHoldout {
		keep, err := dataset.TuningHoldout(labels, cfg.Dataset.TuningSplit, cfg.Seed, cfg.Exp.Mode == "tune")
		if err != nil {
			log.Fatal().Err(err).Msg("tuning holdout")
		}
		ts, labels, err = dataset.SelectSubjects(ts, labels, keep)
		if err != nil {
			log.Fatal().Err(err).Msg("tuning holdout")
		}
		log.Info().Int("subjects", len(labels)).Str("mode", cfg.Exp.Mode).Msg("holdout selected")
	}

	data, info, err := loader.Process(ts, labels, cfg.Dataset, cfg.Model.DataType)
	if err != nil {
		log.Fatal().Err(err).Msg("dataset process")
	}
	data, info, err = loader.Postprocess(data, info)
	if err != nil {
		log.Fatal().Err(err).Msg("dataset postprocess")
	}
	// The attention block slices features into 4 heads; pad FNC widths up.
	data, info, err = dataset.AttentionHeadPad(4)(data, info)
	if err != nil {
		log.Fatal().Err(err).Msg("head padding")
	}
	log.Info().Ints("data_shape", info.DataShape).Int("n_classes", info.NClasses).Msg("data processed")

	net, err := model.Build(cfg.Model, info)
	if err != nil {
		log.Fatal().Err(err).Msg("model build")
	}
	opt, err := optim.NewAdam(&optim.Group{
		Params:      net.Parameters(),
		LR:          cfg.Model.Optimizer.LR,
		WeightDecay: cfg.Model.Optimizer.WeightDecay,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("optimizer")
	}
	sched, err := schedule.New(cfg.Model.Scheduler, cfg.Exp.MaxEpochs, opt)
	if err != nil {
		log.Fatal().Err(err).Msg("scheduler")
	}

	indices := make([]int, len(labels))
	for i := range indices {
		indices[i] = i
	}
	batch, batchLabels, err := data.Batch(indices)
	if err != nil {
		log.Fatal().Err(err).Msg("batch")
	}

	for step := 0; step < *steps && step < cfg.Exp.MaxEpochs; step++ {
		logits, assignments := net.Forward(batch)
		ce := model.CrossEntropySum(logits, batchLabels)
		cluster := net.Loss(assignments)
		sched.Step(ce)

		log.Info().
			Int("step", step).
			Float64("lr", sched.LR()).
			Float64("ce_loss", ce).
			Float64("cluster_loss", cluster).
			Msg("forward")
	}

	if bnt, ok := net.(*model.BrainNetworkTransformer); ok {
		if centers := bnt.ClusterCenters(); centers != nil {
			r, c := centers.Dims()
			log.Info().Int("clusters", r).Int("dim", c).Msg("final cluster centers")
		}
		log.Info().Int("stages", len(bnt.AttentionWeights())).Msg("attention weights recorded")
	}
}
