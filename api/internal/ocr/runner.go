package ocr

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/panjf2000/ants/v2"

	"cbc-anemia/api/internal/cbc"
	"cbc-anemia/api/internal/logger"
)

// Runner executes attempts on a bounded worker pool. Results keep the
// attempt order no matter which call finishes first.
type Runner struct {
	engine Engine
	pool   *ants.PoolWithFunc
	log    logger.Logger
}

type task struct {
	ctx     context.Context
	idx     int
	attempt Attempt
	texts   []string
	errs    []error
	wg      *sync.WaitGroup
}

func NewRunner(engine Engine, workers int) (*Runner, error) {
	if engine == nil {
		return nil, errors.New("ocr engine is nil")
	}
	if workers <= 0 {
		return nil, errors.New("pool size must be greater than 0")
	}
	r := &Runner{engine: engine, log: logger.Default}
	pool, err := ants.NewPoolWithFunc(workers, func(args any) {
		t, ok := args.(*task)
		if !ok {
			panic("ocr pool args type error")
		}
		defer t.wg.Done()
		t.texts[t.idx], t.errs[t.idx] = r.recognize(t.ctx, t.attempt)
	})
	if err != nil {
		return nil, fmt.Errorf("create ocr pool: %w", err)
	}
	r.pool = pool
	return r, nil
}

func (r *Runner) Engine() Engine { return r.engine }

// Release stops the pool workers.
func (r *Runner) Release() {
	if r.pool != nil {
		r.pool.Release()
	}
}

// Run recognizes every attempt and returns non-empty texts in attempt order.
// Failed attempts are dropped.
func (r *Runner) Run(ctx context.Context, attempts []Attempt) []cbc.RawText {
	texts := make([]string, len(attempts))
	errs := make([]error, len(attempts))
	var wg sync.WaitGroup
	for i, a := range attempts {
		wg.Add(1)
		t := &task{ctx: ctx, idx: i, attempt: a, texts: texts, errs: errs, wg: &wg}
		if err := r.pool.Invoke(t); err != nil {
			wg.Done()
			errs[i] = fmt.Errorf("submit ocr task: %w", err)
		}
	}
	wg.Wait()

	out := make([]cbc.RawText, 0, len(attempts))
	for i, a := range attempts {
		if errs[i] != nil {
			r.log.Debugf("ocr %s: %s dropped: %v", r.engine.Name(), a.Source(), errs[i])
			continue
		}
		if strings.TrimSpace(texts[i]) == "" {
			continue
		}
		out = append(out, cbc.RawText{Source: a.Source(), Text: texts[i]})
	}
	return out
}

func (r *Runner) recognize(ctx context.Context, a Attempt) (text string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("ocr panic: %v", p)
		}
	}()
	if a.Path == "" {
		return r.engine.Recognize(ctx, a.Image, a.Config)
	}
	if fe, ok := r.engine.(FileEngine); ok {
		return fe.RecognizeFile(ctx, a.Path, a.Config)
	}
	b, err := os.ReadFile(a.Path)
	if err != nil {
		return "", err
	}
	return r.engine.Recognize(ctx, b, a.Config)
}
