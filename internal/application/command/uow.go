package command

import (
	"context"

	"github.com/bilim-hub/bilim-practice-hub/internal/domain/consequence"
	"github.com/bilim-hub/bilim-practice-hub/internal/domain/session"
)

// UnitOfWork runs a function against repositories bound to a single
// database transaction. Inside the transaction the session read takes a
// row lock, so commands racing on the same session execute one at a time
// and their writes commit or roll back together. Implemented by the
// postgres store.
type UnitOfWork interface {
	InSessionTx(ctx context.Context, fn func(sessions session.Repository, consequences consequence.Repository) error) error
}
