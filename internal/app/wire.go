package app

import (
	"path/filepath"

	"github.com/pkg/errors"

	"pfskit/internal/cardclient"
	"pfskit/internal/domain"
	"pfskit/internal/exhaust"
	"pfskit/internal/keystore"
	"pfskit/internal/protocol/pfs"
	"pfskit/internal/registry"
	"pfskit/internal/rotation"
	"pfskit/internal/session"
	"pfskit/internal/store"
)

// Wire bundles the identity-independent pieces: stores, the crypto engine,
// and the card service client.
type Wire struct {
	Identity *store.FileIdentityStore
	Cards    domain.CardService
	Engine   domain.Engine

	keyStore   domain.KeyBlobStore
	stateStore domain.StateBlobStore
	badger     *store.Badger
	cfg        Config
}

// NewWire constructs the dependency graph from cfg.
func NewWire(cfg Config) (*Wire, error) {
	w := &Wire{
		Identity: store.NewFileIdentityStore(cfg.Home),
		Engine:   pfs.New(),
		cfg:      cfg,
	}

	switch cfg.Backend {
	case BackendFile, "":
		w.keyStore = store.NewFileKeyStore(filepath.Join(cfg.Home, "keys.json"))
		w.stateStore = store.NewFileStateStore(filepath.Join(cfg.Home, "state.json"))
	case BackendBadger:
		db, err := store.OpenBadger(filepath.Join(cfg.Home, "db"))
		if err != nil {
			return nil, errors.Wrap(err, "opening badger database")
		}
		w.badger = db
		w.keyStore = db.Keys()
		w.stateStore = db.States()
	default:
		return nil, errors.Errorf("unknown storage backend %q", cfg.Backend)
	}

	client := cardclient.New(cfg.CardServiceURL, cfg.AccessToken)
	if cfg.HTTP != nil {
		client.HTTP = cfg.HTTP
	}
	w.Cards = client
	return w, nil
}

// Close releases backend resources.
func (w *Wire) Close() error {
	if w.badger != nil {
		return w.badger.Close()
	}
	return nil
}

// Account is the per-identity object graph: key lifecycle, sessions, and
// rotation, all scoped to one unlocked identity.
type Account struct {
	Identity  domain.Identity
	Keys      *keystore.Manager
	Registry  *registry.Registry
	Tracker   *exhaust.Tracker
	Validator *cardclient.Validator
	Sessions  *session.Coordinator
	Rotation  *rotation.Engine
}

// ForIdentity builds the per-identity graph on top of the shared wiring.
func (w *Wire) ForIdentity(id domain.Identity) *Account {
	keys := keystore.New(w.keyStore, id.CardID)
	reg := registry.New(w.stateStore, id.CardID)
	tracker := exhaust.New(w.stateStore, id.CardID)
	validator := cardclient.NewValidator()

	establisher := session.NewEstablisher(w.Engine, keys, validator, id.KeyPair(), id.CardID)
	coordinator := session.NewCoordinator(establisher, keys, reg, w.cfg.SessionTTL)

	replenisher := rotation.NewReplenisher(w.Engine, w.Cards, keys, id.KeyPair(), id.CardID)
	engine := rotation.NewEngine(keys, reg, tracker, w.Cards, replenisher, id.CardID, rotation.Config{
		LongTermKeyTTL:          w.cfg.LongTermKeyTTL,
		ExhaustedLongTermKeyTTL: w.cfg.ExhaustedLongTermKeyTTL,
		ExpiredSessionTTL:       w.cfg.ExpiredSessionTTL,
		ExhaustedOneTimeKeyTTL:  w.cfg.ExhaustedOneTimeKeyTTL,
	})

	return &Account{
		Identity:  id,
		Keys:      keys,
		Registry:  reg,
		Tracker:   tracker,
		Validator: validator,
		Sessions:  coordinator,
		Rotation:  engine,
	}
}
