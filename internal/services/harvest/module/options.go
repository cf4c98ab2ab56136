// Package module wires the harvest engine from configuration
package module

import (
	"time"

	"github.com/go-playground/validator/v10"

	"dpwharvest/internal/platform/config"
	perr "dpwharvest/internal/platform/errors"
)

// Stage names
const (
	StagePages     = "pages"
	StageContracts = "contracts"
)

// Options are the resolved per-stage settings, validated once at startup
type Options struct {
	Stage   string `validate:"required,oneof=pages contracts"`
	BaseURL string `validate:"required,url"`
	OutDir  string `validate:"required"`

	Workers    int `validate:"min=1,max=200"`
	MaxRetries int `validate:"min=1,max=10"`
	Limit      int `validate:"min=1,max=5000"`

	Timeout    time.Duration
	MinDelay   time.Duration
	MaxDelay   time.Duration
	LinearStep time.Duration

	UseProxies  bool
	RecordFiles bool
	PageDumps   bool

	StatusAddr string
	InputPath  string
}

// FromConfig resolves Options for a stage from HARVEST_* env, with
// HARVEST_PAGES_* / HARVEST_CONTRACTS_* overrides layered on top
func FromConfig(root config.Conf, stage string) Options {
	h := root.Prefix("HARVEST_")

	o := Options{
		Stage:       stage,
		BaseURL:     h.MustString("BASE_URL"),
		OutDir:      h.MustDir("OUT_DIR"),
		Timeout:     h.MayDuration("TIMEOUT", 45*time.Second),
		MinDelay:    h.MayDuration("MIN_DELAY", 500*time.Millisecond),
		MaxDelay:    h.MayDuration("MAX_DELAY", 2*time.Second),
		RecordFiles: h.MayBool("RECORD_FILES", false),
		StatusAddr:  h.MayString("STATUS_ADDR", ""),
	}

	switch stage {
	case StagePages:
		p := h.Prefix("PAGES_")
		o.Workers = p.MayInt("WORKERS", 10)
		o.MaxRetries = p.MayInt("MAX_RETRIES", 4)
		o.Limit = p.MayInt("LIMIT", 5000)
		o.LinearStep = p.MayDuration("LINEAR_STEP", 5*time.Second)
		o.PageDumps = p.MayBool("PAGE_DUMPS", true)
	case StageContracts:
		c := h.Prefix("CONTRACTS_")
		o.Workers = c.MayInt("WORKERS", 50)
		o.MaxRetries = c.MayInt("MAX_RETRIES", 3)
		o.Limit = 1
		o.UseProxies = c.MayBool("USE_PROXIES", true)
		o.InputPath = c.MayString("INPUT", "contract_ids.csv")
	}
	return o
}

// Validate checks the resolved options in one pass
func (o Options) Validate() error {
	if err := validator.New().Struct(o); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "harvest options")
	}
	if o.MaxDelay < o.MinDelay {
		return perr.InvalidArgf("harvest options: max delay below min delay")
	}
	return nil
}
