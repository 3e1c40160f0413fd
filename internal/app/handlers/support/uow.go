package support

import (
	"context"

	"staybook/internal/app/uow"
)

// BeginUnit returns the ambient unit of work, or starts a managed one when
// the command is dispatched outside the transaction middleware. The commit
// function is nil for ambient units; cleanup rolls back an uncommitted
// managed unit and is safe to defer unconditionally.
func BeginUnit(ctx context.Context, factory uow.Factory, opts uow.TxOptions) (unit uow.UnitOfWork, execCtx context.Context, commit func(context.Context) error, cleanup func(), err error) {
	if ambient, ok := uow.FromContext(ctx); ok {
		return ambient, ctx, nil, func() {}, nil
	}
	if factory == nil {
		return nil, ctx, nil, nil, uow.ErrUnitOfWorkMissing
	}
	managed, err := factory.Begin(ctx, opts)
	if err != nil {
		return nil, ctx, nil, nil, err
	}
	execCtx = ctx
	if injector, ok := managed.(interface {
		InjectContext(context.Context) context.Context
	}); ok {
		execCtx = injector.InjectContext(ctx)
	}
	execCtx = uow.ContextWithUnitOfWork(execCtx, managed)
	committed := false
	commit = func(c context.Context) error {
		if err := managed.Commit(c); err != nil {
			return err
		}
		committed = true
		return nil
	}
	cleanup = func() {
		if !committed {
			_ = managed.Rollback(execCtx)
		}
	}
	return managed, execCtx, commit, cleanup, nil
}

// BeginReadOnlyUnit is BeginUnit for query handlers.
func BeginReadOnlyUnit(ctx context.Context, factory uow.Factory) (uow.UnitOfWork, context.Context, func(), error) {
	unit, execCtx, _, cleanup, err := BeginUnit(ctx, factory, uow.TxOptions{ReadOnly: true})
	return unit, execCtx, cleanup, err
}
