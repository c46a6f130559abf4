package registry

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"tg-scriptguard/internal/logger"
	"tg-scriptguard/internal/models"
	"tg-scriptguard/internal/platform"
)

var driftFound = promauto.NewCounter(prometheus.CounterOpts{
	Name: "scriptguard_reconcile_drift_total",
	Help: "Removed users found still in their group during reconciliation",
})

type MembershipOracle interface {
	MemberStatus(ctx context.Context, groupID, userID int64) (platform.MemberStatus, error)
}

type Banner interface {
	Ban(ctx context.Context, groupID, userID int64) error
}

// Entry is one registry row with what the platform said about it.
type Entry struct {
	Row       models.RemovedUser
	Status    platform.MemberStatus
	LookupErr error
}

// BanFailure is a re-ban that the platform refused.
type BanFailure struct {
	UserID int64
	Err    error
}

type Report struct {
	GroupID int64
	// StillIn rows were found in the group and a ban was re-issued.
	StillIn []Entry
	// NotIn includes rows whose lookup failed.
	NotIn       []Entry
	BanFailures []BanFailure
}

func (r Report) Total() int { return len(r.StillIn) + len(r.NotIn) }

// Reconciler compares the registry with live group membership.
type Reconciler struct {
	registry *Registry
	oracle   MembershipOracle
	banner   Banner
}

func NewReconciler(registry *Registry, oracle MembershipOracle, banner Banner) *Reconciler {
	return &Reconciler{registry: registry, oracle: oracle, banner: banner}
}

// Reconcile checks every removed user of groupID against live membership and
// bans again whoever is still in. Only a failure to read the registry is returned
// as an error; lookup and ban failures end up in the report.
func (r *Reconciler) Reconcile(ctx context.Context, groupID int64) (Report, error) {
	report := Report{GroupID: groupID}

	rows, err := r.registry.List(ctx, groupID)
	if err != nil {
		return report, err
	}

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		status, err := r.oracle.MemberStatus(ctx, groupID, row.UserID)
		entry := Entry{Row: row, Status: status, LookupErr: err}
		if err != nil || !status.InGroup() {
			if err != nil {
				logger.Warningf("Reconcile %d: status lookup for %d failed: %v", groupID, row.UserID, err)
				entry.Status = platform.StatusUnknown
			}
			report.NotIn = append(report.NotIn, entry)
			continue
		}
		report.StillIn = append(report.StillIn, entry)
	}

	for _, e := range report.StillIn {
		driftFound.Inc()
		if err := r.banner.Ban(ctx, groupID, e.Row.UserID); err != nil {
			logger.Warningf("Reconcile %d: ban of %d failed: %v", groupID, e.Row.UserID, err)
			report.BanFailures = append(report.BanFailures, BanFailure{UserID: e.Row.UserID, Err: err})
		}
	}

	logger.Infof("Reconciled group %d: %d still in, %d not in, %d ban failures",
		groupID, len(report.StillIn), len(report.NotIn), len(report.BanFailures))
	return report, nil
}
