package rotation

import (
	"context"
	"encoding/base64"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/logger"
	"github.com/pkg/errors"

	"pfskit/internal/domain"
	"pfskit/internal/exhaust"
	"pfskit/internal/keystore"
	"pfskit/internal/registry"
)

// Config holds the grace windows the maintenance pass works with. Expired
// material is kept for its grace window past the moment it stopped being
// usable, so in-flight messages can still be decrypted, then deleted.
type Config struct {
	LongTermKeyTTL          time.Duration
	ExhaustedLongTermKeyTTL time.Duration
	ExpiredSessionTTL       time.Duration
	ExhaustedOneTimeKeyTTL  time.Duration

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// Engine runs the periodic key-rotation pass for one identity: cleanup of
// stale local material, a remote pool-depth check, and replenishment when
// the pool runs short. Exactly one pass per identity runs at a time.
type Engine struct {
	keys        *keystore.Manager
	sessions    *registry.Registry
	tracker     *exhaust.Tracker
	cards       domain.CardService
	replenisher *Replenisher

	identityCardID string
	cfg            Config
	now            func() time.Time
	busy           atomic.Bool
}

// NewEngine wires a rotation engine for one identity.
func NewEngine(keys *keystore.Manager, sessions *registry.Registry, tracker *exhaust.Tracker, cards domain.CardService, replenisher *Replenisher, identityCardID string, cfg Config) *Engine {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		keys:           keys,
		sessions:       sessions,
		tracker:        tracker,
		cards:          cards,
		replenisher:    replenisher,
		identityCardID: identityCardID,
		cfg:            cfg,
		now:            now,
	}
}

// Rotate runs one maintenance pass. Cleanup and the remote status check run
// concurrently; replenishment waits for both and is skipped when either
// failed. A second call while a pass is running fails immediately with
// ErrRotationInProgress rather than queuing.
func (e *Engine) Rotate(ctx context.Context, desiredNumberOfCards int) error {
	if !e.busy.CompareAndSwap(false, true) {
		return domain.ErrRotationInProgress
	}
	defer e.busy.Store(false)

	logger.Infof("rotating keys for %s", e.identityCardID)

	var (
		wg         sync.WaitGroup
		cleanupErr error
		status     domain.CardsStatus
		statusErr  error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		cleanupErr = e.cleanup(ctx)
	}()
	go func() {
		defer wg.Done()
		status, statusErr = e.cards.GetCardsStatus(ctx, e.identityCardID)
	}()
	wg.Wait()

	if cleanupErr != nil {
		return errors.Wrap(cleanupErr, "cleanup")
	}
	if statusErr != nil {
		return errors.Wrap(statusErr, "cards status")
	}

	missing := desiredNumberOfCards - status.Active
	if missing <= 0 {
		logger.Infof("card pool for %s is full (%d active)", e.identityCardID, status.Active)
		return nil
	}
	addLt := !e.keys.HasRelevantLtKey(e.now(), e.cfg.LongTermKeyTTL)
	return e.replenisher.Replenish(ctx, missing, addLt)
}

// cleanup walks local key material and the exhaustion ledger: stale
// long-term keys, expired sessions, orphaned session keys, and one-time
// keys the service reports as spent. Every sub-step is safe to re-run, so
// a failed pass converges on retry.
func (e *Engine) cleanup(ctx context.Context) error {
	now := e.now()

	attrs, err := e.keys.GetAllKeysAttrs()
	if err != nil {
		return errors.Wrap(err, "listing key attrs")
	}

	if err := e.cleanupLtKeys(now, attrs.Lt); err != nil {
		return err
	}
	activeIDs, err := e.cleanupSessions(now)
	if err != nil {
		return err
	}
	if err := e.cleanupOrphanedSessionKeys(attrs.Session, activeIDs); err != nil {
		return err
	}
	return e.cleanupOtKeys(ctx, now, attrs.Ot)
}

// cleanupLtKeys deletes long-term keys that aged past their TTL plus the
// exhaustion grace window. A key inside the window stays usable so
// handshakes already addressed to it can still complete.
func (e *Engine) cleanupLtKeys(now time.Time, ltAttrs []domain.KeyAttrs) error {
	cutoff := e.cfg.LongTermKeyTTL + e.cfg.ExhaustedLongTermKeyTTL
	var toRemove []string
	for _, lt := range ltAttrs {
		if now.After(lt.CreationDate.Add(cutoff)) {
			toRemove = append(toRemove, lt.Name)
		}
	}
	if len(toRemove) == 0 {
		return nil
	}
	logger.Infof("removing %d stale long-term keys", len(toRemove))
	return e.keys.RemoveLtPrivateKeys(toRemove)
}

// cleanupSessions removes registry entries for sessions whose expiration
// grace window has passed. It returns the base64 session ids still present
// in the registry afterwards; the keys of removed sessions fall out through
// the orphan sweep.
func (e *Engine) cleanupSessions(now time.Time) (map[string]bool, error) {
	all, err := e.sessions.GetAllSessionsStates()
	if err != nil {
		return nil, errors.Wrap(err, "listing sessions")
	}

	active := make(map[string]bool, len(all))
	var removals []registry.SessionRemoval
	for _, ps := range all {
		if now.After(ps.State.ExpirationDate.Add(e.cfg.ExpiredSessionTTL)) {
			removals = append(removals, registry.SessionRemoval{
				ParticipantID: ps.ParticipantID,
				SessionID:     ps.State.SessionID,
			})
			continue
		}
		active[base64.StdEncoding.EncodeToString(ps.State.SessionID)] = true
	}

	if len(removals) > 0 {
		logger.Infof("removing %d expired sessions", len(removals))
		if err := e.sessions.RemoveSessionsStates(removals); err != nil {
			return nil, errors.Wrap(err, "removing expired sessions")
		}
	}
	return active, nil
}

// cleanupOrphanedSessionKeys deletes session key entries with no backing
// registry entry: leftovers of partial failures and of the sessions the
// pass just removed.
func (e *Engine) cleanupOrphanedSessionKeys(sessionAttrs []domain.KeyAttrs, activeIDs map[string]bool) error {
	var orphaned [][]byte
	for _, s := range sessionAttrs {
		if activeIDs[s.Name] {
			continue
		}
		id, err := base64.StdEncoding.DecodeString(s.Name)
		if err != nil {
			continue
		}
		orphaned = append(orphaned, id)
	}
	if len(orphaned) == 0 {
		return nil
	}
	logger.Infof("garbage collecting %d orphaned session keys", len(orphaned))
	return e.keys.RemoveSessionsKeys(orphaned)
}

// cleanupOtKeys deletes one-time keys whose exhaustion grace window has
// passed, then asks the card service which of the untracked remainder have
// been handed out and starts their grace window. The ledger is the only
// record of when a one-time card was spent, so it is pruned and saved here.
func (e *Engine) cleanupOtKeys(ctx context.Context, now time.Time, otAttrs []domain.KeyAttrs) error {
	info, err := e.tracker.GetKeysExhaustInfo()
	if err != nil {
		return err
	}

	existing := make(map[string]bool, len(otAttrs))
	for _, ot := range otAttrs {
		existing[ot.Name] = true
	}

	var kept []domain.OtcExhaustInfo
	var toRemove []string
	for _, entry := range info.Otc {
		switch {
		case !existing[entry.CardID]:
		case now.After(entry.ExhaustDate.Add(e.cfg.ExhaustedOneTimeKeyTTL)):
			toRemove = append(toRemove, entry.CardID)
		default:
			kept = append(kept, entry)
		}
	}

	if len(toRemove) > 0 {
		logger.Infof("removing %d exhausted one-time keys", len(toRemove))
		if err := e.keys.RemoveOtPrivateKeys(toRemove); err != nil {
			return err
		}
	}

	removed := make(map[string]bool, len(toRemove))
	for _, name := range toRemove {
		removed[name] = true
	}
	stillTracked := make(map[string]bool, len(kept))
	for _, entry := range kept {
		stillTracked[entry.CardID] = true
	}

	var remaining []string
	for _, ot := range otAttrs {
		if !removed[ot.Name] && !stillTracked[ot.Name] {
			remaining = append(remaining, ot.Name)
		}
	}
	if len(remaining) > 0 {
		exhausted, err := e.cards.ValidateOneTimeCards(ctx, e.identityCardID, remaining)
		if err != nil {
			return errors.Wrap(err, "validating one-time cards")
		}
		for _, id := range exhausted {
			kept = append(kept, domain.OtcExhaustInfo{CardID: id, ExhaustDate: now})
		}
		if len(exhausted) > 0 {
			logger.Infof("%d one-time cards newly reported exhausted", len(exhausted))
		}
	}

	info.Otc = kept
	return e.tracker.SaveKeysExhaustInfo(info)
}
