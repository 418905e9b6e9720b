package directory

import (
	"context"
	"fmt"

	"github.com/custodia-labs/relaysync/internal/core/domain"
	"github.com/custodia-labs/relaysync/internal/core/ports/driven"
	"github.com/custodia-labs/relaysync/internal/directory/generic"
	"github.com/custodia-labs/relaysync/internal/directory/google"
	"github.com/custodia-labs/relaysync/internal/directory/microsoft"
)

// Ensure Factory implements the interface.
var _ driven.DirectoryFactory = (*Factory)(nil)

// Factory builds remote directories from account configuration.
type Factory struct{}

// NewFactory creates a directory factory.
func NewFactory() *Factory {
	return &Factory{}
}

// Create returns a RemoteDirectory for the account and kind.
func (f *Factory) Create(ctx context.Context, account domain.Account, kind domain.RecordKind) (driven.RemoteDirectory, error) {
	if !kind.IsValid() {
		return nil, fmt.Errorf("%w: unknown record kind %q", domain.ErrInvalidInput, kind)
	}

	switch account.Provider {
	case domain.ProviderGoogle:
		return google.NewDirectory(ctx, account, kind)
	case domain.ProviderMicrosoft:
		return microsoft.NewDirectory(account, kind)
	case domain.ProviderGeneric:
		return generic.NewDirectory(account, kind)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", domain.ErrInvalidInput, account.Provider)
	}
}
