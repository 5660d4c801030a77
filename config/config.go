// Package config loads decode configuration from YAML files.
package config

import (
	"io"
	"math"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/FabricioMatos/flashlight-text-go/decoder"
)

// Config describes one decode setup: model file paths plus beam search
// parameters. Fields absent from the YAML keep the values from Default.
type Config struct {
	Tokens  string `yaml:"tokens"`  // token inventory, one per line
	Lexicon string `yaml:"lexicon"` // pronunciation lexicon
	LM      string `yaml:"lm"`      // ARPA language model; empty uses a zero LM

	Criterion string `yaml:"criterion"` // "ctc" or "asg"

	BeamSize      int     `yaml:"beam_size"`
	BeamSizeToken int     `yaml:"beam_size_token"`
	BeamThreshold float64 `yaml:"beam_threshold"`
	LMWeight      float64 `yaml:"lm_weight"`
	WordScore     float64 `yaml:"word_score"`
	UnkScore      float64 `yaml:"unk_score"` // used only when emit_unknown is set
	EmitUnknown   bool    `yaml:"emit_unknown"`
	SilScore      float64 `yaml:"sil_score"`
	LogAdd        bool    `yaml:"log_add"`

	CustomWordFactor float64  `yaml:"custom_word_factor"`
	CustomWordLenRef float64  `yaml:"custom_word_len_ref"`
	CustomVocabulary []string `yaml:"custom_vocabulary"`

	SilToken   string `yaml:"sil_token"`
	BlankToken string `yaml:"blank_token"`
	UnkWord    string `yaml:"unk_word"`
}

// Default returns the baseline configuration.
func Default() Config {
	opt := decoder.DefaultOptions()
	return Config{
		Criterion:        "ctc",
		BeamSize:         opt.BeamSize,
		BeamSizeToken:    opt.BeamSizeToken,
		BeamThreshold:    opt.BeamThreshold,
		LMWeight:         opt.LMWeight,
		CustomWordLenRef: opt.CustomWordLenRef,
		SilToken:         "|",
		BlankToken:       "#",
		UnkWord:          "<unk>",
	}
}

// Load reads a YAML configuration over the defaults and validates it.
func Load(r io.Reader) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return Config{}, errors.Wrap(err, "config: decode YAML")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFile is a convenience wrapper that opens a file path.
func LoadFile(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "config: open")
	}
	defer f.Close()
	return Load(f)
}

// Validate checks the configuration for consistency.
func (c Config) Validate() error {
	if c.Criterion != "ctc" && c.Criterion != "asg" {
		return errors.Errorf("config: unknown criterion %q", c.Criterion)
	}
	if c.BeamSize <= 0 {
		return errors.Errorf("config: beam_size %d", c.BeamSize)
	}
	if c.BeamSizeToken <= 0 {
		return errors.Errorf("config: beam_size_token %d", c.BeamSizeToken)
	}
	if c.BeamThreshold < 0 {
		return errors.Errorf("config: beam_threshold %f", c.BeamThreshold)
	}
	if c.SilToken == "" {
		return errors.New("config: sil_token is required")
	}
	if c.Criterion == "ctc" && c.BlankToken == "" {
		return errors.New("config: blank_token is required for ctc")
	}
	return nil
}

// DecoderOptions maps the configuration onto decoder options.
func (c Config) DecoderOptions() decoder.Options {
	opt := decoder.Options{
		BeamSize:         c.BeamSize,
		BeamSizeToken:    c.BeamSizeToken,
		BeamThreshold:    c.BeamThreshold,
		LMWeight:         c.LMWeight,
		WordScore:        c.WordScore,
		UnkScore:         math.Inf(-1),
		SilScore:         c.SilScore,
		LogAdd:           c.LogAdd,
		Criterion:        decoder.CriterionCTC,
		CustomWordFactor: c.CustomWordFactor,
		CustomWordLenRef: c.CustomWordLenRef,
	}
	if c.EmitUnknown {
		opt.UnkScore = c.UnkScore
	}
	if c.Criterion == "asg" {
		opt.Criterion = decoder.CriterionASG
	}
	return opt
}
