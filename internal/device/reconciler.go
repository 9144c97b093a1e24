package device

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/safeguardhq/safeguard/internal/auth"
	"github.com/safeguardhq/safeguard/internal/emergency"
)

// StatusClient fetches the server-authoritative active-session status for
// the signed-in owner.
type StatusClient interface {
	Status(ctx context.Context) (emergency.ActiveStatus, error)
}

// Outcome tells the UI what the foreground transition requires.
type Outcome struct {
	// RequirePIN: controls stay hidden until the lock validates a PIN.
	RequirePIN bool
	// RequireLogin: the credential is dead; belief was cleared.
	RequireLogin bool
	// Status is the reconciled server truth (zero value when RequirePIN
	// short-circuits before the server call).
	Status emergency.ActiveStatus
}

// Reconciler reconciles the device's "I think a session is active" belief
// against server truth on every foreground transition.
type Reconciler struct {
	lock    *Lock
	client  StatusClient
	logger  *slog.Logger
	timeout time.Duration
}

func NewReconciler(lock *Lock, client StatusClient, logger *slog.Logger, timeout time.Duration) *Reconciler {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Reconciler{lock: lock, client: client, logger: logger, timeout: timeout}
}

// OnForeground runs the resume path. When a session is believed active and a
// PIN is configured the server is not consulted yet: the PIN gate comes
// first, regardless of what the server would say, so emergency status never
// shows to an unverified holder of the phone.
func (r *Reconciler) OnForeground(ctx context.Context) (Outcome, error) {
	phase := r.lock.Foreground()
	if phase == PhaseEntering {
		return Outcome{RequirePIN: true}, nil
	}
	return r.reconcile(ctx)
}

// AfterUnlock continues the resume path once the lock has validated a PIN.
func (r *Reconciler) AfterUnlock(ctx context.Context) (Outcome, error) {
	if !r.lock.ControlsExposed() {
		return Outcome{RequirePIN: true}, nil
	}
	return r.reconcile(ctx)
}

func (r *Reconciler) reconcile(ctx context.Context) (Outcome, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	status, err := r.client.Status(ctx)
	if errors.Is(err, auth.ErrUnauthenticated) {
		// Dead credential: drop the local belief and force re-login.
		r.lock.SetBelievedActive(false)
		return Outcome{RequireLogin: true}, nil
	}
	if err != nil {
		// Offline or timed out: keep the local belief, caller retries.
		r.logger.Warn("status check failed, keeping local belief", "error", err)
		return Outcome{Status: emergency.ActiveStatus{Active: r.lock.BelievedActive()}}, err
	}

	r.lock.SetBelievedActive(status.Active)
	if !status.Active {
		r.logger.Info("stale session belief cleared")
	}
	return Outcome{Status: status}, nil
}
