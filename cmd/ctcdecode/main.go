// Command ctcdecode is a worked example and integration harness for the
// ctcbeam package: it reads a JSON fixture of predictions, runs prefix beam
// search decoding, and prints the decoded sequences. It is not part of the
// library's contract.
package main

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kirksaunders/subtitle-ocr-console"
)

// fixture is the on-disk JSON shape accepted by the command: predictions are
// nested [batch][timestep][class] arrays rather than the flat buffer the
// library expects, since that is what a human would actually write by hand.
type fixture struct {
	Predictions [][][]float32 `json:"predictions"`
	Lengths     []int32       `json:"lengths"`
	NumClasses  int           `json:"num_classes"`
	BlankIdx    int           `json:"blank_idx"`
	BeamWidth   int           `json:"beam_width"`
	LM          *lmFixture    `json:"language_model,omitempty"`
}

type lmFixture struct {
	FirstCharProbs  []float64 `json:"first_char_probs"`
	SecondCharProbs []float64 `json:"second_char_probs"`
	Weight          float64   `json:"weight"`
	MinProb         float64   `json:"min_prob"`
}

type output struct {
	Sequences [][]int32   `json:"sequences"`
	Entropy   [][]float64 `json:"entropy,omitempty"`
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "ctcdecode <fixture.json>",
		Short: "Run prefix beam search CTC decoding over a JSON fixture",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, v, args[0])
		},
	}

	flags := cmd.Flags()
	flags.Int("beam-width", 0, "override the fixture's beam_width (0 keeps the fixture value)")
	flags.Int("blank-idx", -1, "override the fixture's blank_idx (-1 keeps the fixture value)")
	flags.String("log-level", "info", "zerolog level: debug, info, warn, error, disabled")
	flags.String("metrics-addr", "", "if set, serve Prometheus metrics on this address for the run's duration")
	flags.String("config", "", "optional config file (yaml/json/toml) supplying any of the above")
	flags.Bool("explain", false, "print per-timestep class-distribution entropy alongside the decoded sequence")

	v.SetEnvPrefix("CTCDECODE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	_ = v.BindPFlags(flags)

	return cmd
}

func run(cmd *cobra.Command, v *viper.Viper, fixturePath string) error {
	if cfgFile := v.GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config file: %w", err)
		}
	}

	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	level, err := zerolog.ParseLevel(v.GetString("log-level"))
	if err != nil {
		return fmt.Errorf("parsing log-level: %w", err)
	}
	logger = logger.Level(level)

	raw, err := os.ReadFile(fixturePath)
	if err != nil {
		return fmt.Errorf("reading fixture: %w", err)
	}
	var fx fixture
	if err := json.Unmarshal(raw, &fx); err != nil {
		return fmt.Errorf("parsing fixture: %w", err)
	}

	beamWidth := fx.BeamWidth
	if bw := v.GetInt("beam-width"); bw > 0 {
		beamWidth = bw
	}
	blankIdx := fx.BlankIdx
	if bi := v.GetInt("blank-idx"); bi >= 0 {
		blankIdx = bi
	}

	predictions, batch, maxNumPreds := flattenFixturePredictions(fx.Predictions, fx.NumClasses)

	opts := []ctcbeam.Option{ctcbeam.WithLogger(logger)}

	var stopMetrics func()
	if addr := v.GetString("metrics-addr"); addr != "" {
		reg := prometheus.NewRegistry()
		metrics := ctcbeam.NewMetrics(reg)
		opts = append(opts, ctcbeam.WithMetrics(metrics))

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: addr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error().Err(err).Msg("metrics server exited")
			}
		}()
		stopMetrics = func() { _ = srv.Close() }
		logger.Info().Str("addr", addr).Msg("serving metrics")
	}
	if stopMetrics != nil {
		defer stopMetrics()
	}

	var result *ctcbeam.Result
	if fx.LM != nil {
		lm, err := ctcbeam.NewLanguageModel(fx.NumClasses, blankIdx, fx.LM.FirstCharProbs, fx.LM.SecondCharProbs, fx.LM.Weight, fx.LM.MinProb)
		if err != nil {
			return fmt.Errorf("building language model: %w", err)
		}
		result, err = ctcbeam.DecodeWithLM(predictions, fx.Lengths, fx.NumClasses, beamWidth, blankIdx, lm, opts...)
		if err != nil {
			return fmt.Errorf("decoding: %w", err)
		}
	} else {
		result, err = ctcbeam.Decode(predictions, fx.Lengths, fx.NumClasses, beamWidth, blankIdx, opts...)
		if err != nil {
			return fmt.Errorf("decoding: %w", err)
		}
	}

	out := output{Sequences: make([][]int32, batch)}
	for i := 0; i < batch; i++ {
		start := i * result.MaxOutputLen
		end := start + int(result.Lengths[i])
		out.Sequences[i] = result.Sequences[start:end]
	}

	if v.GetBool("explain") {
		tensor, err := ctcbeam.NewTensor(predictions, batch, fx.NumClasses)
		if err != nil {
			return fmt.Errorf("building tensor for explain: %w", err)
		}
		out.Entropy = make([][]float64, batch)
		for i := 0; i < batch; i++ {
			steps := int(fx.Lengths[i])
			row := make([]float64, steps)
			for t := 0; t < steps; t++ {
				if t >= maxNumPreds {
					break
				}
				row[t] = distributionEntropy(tensor.RowVec(i, t).RawVector().Data)
			}
			out.Entropy[i] = row
		}
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// flattenFixturePredictions packs nested [batch][timestep][class] arrays
// into the flat row-major buffer ctcbeam.Decode expects, right-padding
// shorter batch items with zero probability rows so every item shares the
// same derived max_num_preds.
func flattenFixturePredictions(nested [][][]float32, numClasses int) (flat []float32, batch, maxNumPreds int) {
	batch = len(nested)
	for _, rows := range nested {
		if len(rows) > maxNumPreds {
			maxNumPreds = len(rows)
		}
	}
	flat = make([]float32, batch*maxNumPreds*numClasses)
	for b, rows := range nested {
		for t, row := range rows {
			copy(flat[(b*maxNumPreds+t)*numClasses:], row)
		}
	}
	return flat, batch, maxNumPreds
}

// distributionEntropy computes Shannon entropy in nats over a class
// distribution, used only for the --explain surface.
func distributionEntropy(p []float64) float64 {
	var h float64
	for _, v := range p {
		if v <= 0 {
			continue
		}
		h -= v * math.Log(v)
	}
	return h
}
