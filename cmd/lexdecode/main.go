// Command lexdecode runs the lexicon-constrained beam search decoder over
// emission matrix files. Each input file holds one utterance: T lines of N
// whitespace-separated per-token scores. Inputs are decoded concurrently,
// one decoder instance per file.
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/asticode/go-astilog"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	flashlight "github.com/FabricioMatos/flashlight-text-go"
	"github.com/FabricioMatos/flashlight-text-go/config"
	"github.com/FabricioMatos/flashlight-text-go/decoder"
)

var logger = astilog.New(astilog.Configuration{})

func main() {
	if err := newRootCommand().Execute(); err != nil {
		logger.Fatal(err)
	}
}

func newRootCommand() *cobra.Command {
	var (
		configPath string
		nbest      int
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:          "lexdecode [emission files...]",
		Short:        "Decode emission matrices with a lexicon-constrained beam search",
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			level := astilog.LevelInfo
			if verbose {
				level = astilog.LevelDebug
			}
			logger = astilog.New(astilog.Configuration{Level: level})
			return run(configPath, nbest, args)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "decode.yaml", "decode configuration file")
	cmd.Flags().IntVarP(&nbest, "nbest", "n", 1, "hypotheses to print per input")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
	return cmd
}

func run(configPath string, nbest int, paths []string) error {
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return err
	}

	options := []flashlight.Option{
		flashlight.WithDecoderOptions(cfg.DecoderOptions()),
		flashlight.WithSpecialTokens(cfg.SilToken, cfg.BlankToken),
		flashlight.WithUnkWord(cfg.UnkWord),
	}
	if len(cfg.CustomVocabulary) > 0 {
		options = append(options, flashlight.WithCustomVocabulary(cfg.CustomVocabulary))
	}
	if cfg.LM == "" {
		options = append(options, flashlight.WithZeroLM())
	}

	engine, err := flashlight.NewEngine(cfg.Tokens, cfg.Lexicon, cfg.LM, options...)
	if err != nil {
		return err
	}
	logger.Infof("lexdecode: engine ready, %d tokens, %d words", engine.Tokens.Size(), engine.Words.Size())

	// One decoder instance per input; instances are independent and run in
	// parallel.
	results := make([][]decoder.DecodeResult, len(paths))
	var g errgroup.Group
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			emissions, T, N, err := readEmissions(path)
			if err != nil {
				return err
			}
			dec, err := engine.NewDecoder()
			if err != nil {
				return err
			}
			res, err := dec.Decode(emissions, T, N)
			if err != nil {
				return errors.Wrapf(err, "lexdecode: decode %s", path)
			}
			results[i] = res
			logger.Debugf("lexdecode: %s: %d frames, %d hypotheses", path, T, len(res))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, path := range paths {
		res := results[i]
		if len(res) == 0 {
			fmt.Printf("%s\t\n", path)
			continue
		}
		top := nbest
		if top > len(res) {
			top = len(res)
		}
		for _, r := range res[:top] {
			fmt.Printf("%s\t%.4f\t%s\n", path, r.Score, strings.Join(engine.Transcript(r), " "))
		}
	}
	return nil
}

// readEmissions parses a T×N emission matrix from a text file with one
// frame per line.
func readEmissions(path string) ([]float32, int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, 0, errors.Wrap(err, "lexdecode: open emissions")
	}
	defer f.Close()
	return parseEmissions(f, path)
}

func parseEmissions(f io.Reader, path string) ([]float32, int, int, error) {
	var (
		emissions []float32
		T, N      int
	)
	scanner := bufio.NewScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if N == 0 {
			N = len(fields)
		} else if len(fields) != N {
			return nil, 0, 0, errors.Errorf("lexdecode: %s:%d: %d scores, expected %d", path, lineNum, len(fields), N)
		}
		for _, field := range fields {
			v, err := strconv.ParseFloat(field, 32)
			if err != nil {
				return nil, 0, 0, errors.Wrapf(err, "lexdecode: %s:%d", path, lineNum)
			}
			emissions = append(emissions, float32(v))
		}
		T++
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, 0, errors.Wrapf(err, "lexdecode: read %s", path)
	}
	if T == 0 {
		return nil, 0, 0, errors.Errorf("lexdecode: %s holds no frames", path)
	}
	return emissions, T, N, nil
}
