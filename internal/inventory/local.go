package inventory

import (
	"context"
	"fmt"
	"sync"

	"github.com/nerrad567/autoscan-core/internal/infrastructure/database"
)

// LocalClient applies pairs directly to an inventory database on this
// host. It gives the same statuses as the remote command.
type LocalClient struct {
	cfg database.Config

	mu    sync.Mutex
	db    *database.DB
	store *Store
}

// NewLocalClient creates an unconnected client for the database at path.
// The file must already exist.
func NewLocalClient(path string, busyTimeout int) *LocalClient {
	return &LocalClient{cfg: database.Config{
		Path:        path,
		WALMode:     true,
		BusyTimeout: busyTimeout,
		MustExist:   true,
	}}
}

// Connect opens the inventory database.
func (c *LocalClient) Connect(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db != nil {
		return nil
	}

	db, err := database.Open(c.cfg)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnect, err)
	}
	c.db = db
	c.store = NewStore(db.DB)
	return nil
}

func (c *LocalClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.db != nil
}

// Update applies one pair through Store.
func (c *LocalClient) Update(ctx context.Context, nid, location string) (ExitStatus, error) {
	c.mu.Lock()
	store := c.store
	c.mu.Unlock()

	if store == nil {
		return StatusUnknown, ErrNotConnected
	}

	status, err := store.Apply(ctx, nid, location)
	if status == StatusOK {
		return status, nil
	}
	output := ""
	if err != nil {
		output = err.Error()
	}
	return status, statusError(status, output)
}

func (c *LocalClient) Close() error {
	c.mu.Lock()
	db := c.db
	c.db = nil
	c.store = nil
	c.mu.Unlock()

	if db == nil {
		return nil
	}
	return db.Close()
}
