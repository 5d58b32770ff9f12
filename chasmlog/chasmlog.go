// Package chasmlog wraps a chasm.Backend, logging each operation as it
// happens via the standard log package. It exists to carry ambient
// observability without building a full telemetry system.
package chasmlog

import (
	"context"
	"io"
	"log"

	"github.com/bobg/chasm"
	"github.com/bobg/chasm/digest"
	"github.com/bobg/chasm/reqctx"
)

var _ chasm.Backend = &Backend{}

// Backend delegates every operation to a nested Backend, logging as it
// goes.
type Backend struct {
	b chasm.Backend
}

// New wraps b with logging.
func New(b chasm.Backend) *Backend {
	return &Backend{b: b}
}

func (l *Backend) Exists(ctx context.Context, d digest.Digest) (bool, error) {
	ok, err := l.b.Exists(ctx, d)
	if err != nil {
		log.Printf("[%s] ERROR Exists(%s): %s", reqctx.CorrelationId(ctx), d, err)
	} else {
		log.Printf("[%s] Exists(%s) = %v", reqctx.CorrelationId(ctx), d, ok)
	}
	return ok, err
}

func (l *Backend) Read(ctx context.Context, d digest.Digest) (*chasm.ChasmBlob, error) {
	b, err := l.b.Read(ctx, d)
	if err != nil {
		log.Printf("[%s] ERROR Read(%s): %s", reqctx.CorrelationId(ctx), d, err)
	} else {
		log.Printf("[%s] Read(%s), present=%v", reqctx.CorrelationId(ctx), d, b != nil)
	}
	return b, err
}

func (l *Backend) ReadStream(ctx context.Context, d digest.Digest) (*chasm.ChasmStream, error) {
	s, err := l.b.ReadStream(ctx, d)
	if err != nil {
		log.Printf("[%s] ERROR ReadStream(%s): %s", reqctx.CorrelationId(ctx), d, err)
	} else {
		log.Printf("[%s] ReadStream(%s), present=%v", reqctx.CorrelationId(ctx), d, s != nil)
	}
	return s, err
}

func (l *Backend) WriteFunc(ctx context.Context, metadata chasm.Metadata, forceOverwrite bool, produce func(io.Writer) error) (chasm.WriteResult[digest.Digest], error) {
	res, err := l.b.WriteFunc(ctx, metadata, forceOverwrite, produce)
	if err != nil {
		log.Printf("[%s] ERROR WriteFunc: %s", reqctx.CorrelationId(ctx), err)
	} else {
		log.Printf("[%s] WriteFunc -> %s, created=%v", reqctx.CorrelationId(ctx), res.Id, res.Created)
	}
	return res, err
}

func (l *Backend) ListNames(ctx context.Context) ([]string, error) {
	names, err := l.b.ListNames(ctx)
	if err != nil {
		log.Printf("[%s] ERROR ListNames: %s", reqctx.CorrelationId(ctx), err)
	} else {
		log.Printf("[%s] ListNames -> %d names", reqctx.CorrelationId(ctx), len(names))
	}
	return names, err
}

func (l *Backend) ListBranches(ctx context.Context, name string) ([]chasm.CommitRef, error) {
	refs, err := l.b.ListBranches(ctx, name)
	if err != nil {
		log.Printf("[%s] ERROR ListBranches(%s): %s", reqctx.CorrelationId(ctx), name, err)
	} else {
		log.Printf("[%s] ListBranches(%s) -> %d branches", reqctx.CorrelationId(ctx), name, len(refs))
	}
	return refs, err
}

func (l *Backend) ReadCommitRef(ctx context.Context, name, branch string) (*chasm.CommitRef, error) {
	ref, err := l.b.ReadCommitRef(ctx, name, branch)
	if err != nil {
		log.Printf("[%s] ERROR ReadCommitRef(%s, %s): %s", reqctx.CorrelationId(ctx), name, branch, err)
	} else {
		log.Printf("[%s] ReadCommitRef(%s, %s), present=%v", reqctx.CorrelationId(ctx), name, branch, ref != nil)
	}
	return ref, err
}

func (l *Backend) WriteCommitRef(ctx context.Context, name string, previous *chasm.CommitId, ref chasm.CommitRef) error {
	err := l.b.WriteCommitRef(ctx, name, previous, ref)
	if err != nil {
		log.Printf("[%s] ERROR WriteCommitRef(%s, %s): %s", reqctx.CorrelationId(ctx), name, ref.Branch, err)
	} else {
		log.Printf("[%s] WriteCommitRef(%s, %s) -> %s", reqctx.CorrelationId(ctx), name, ref.Branch, ref.CommitId)
	}
	return err
}
