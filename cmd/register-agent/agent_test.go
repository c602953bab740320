package main

import (
	"context"
	"errors"
	"testing"

	"github.com/angelmondragon/franchisepos-backend/internal/offline"
	"github.com/angelmondragon/franchisepos-backend/pkg/logger"
	"github.com/angelmondragon/franchisepos-backend/pkg/types"
)

type stubRemote struct {
	readyErr   error
	capability types.OfflineCapabilityView
	capErr     error
}

func (s *stubRemote) Ready(context.Context) error { return s.readyErr }

func (s *stubRemote) OfflineCapability(context.Context) (types.OfflineCapabilityView, error) {
	return s.capability, s.capErr
}

type stubQueue struct {
	gate    offline.Gate
	report  offline.DrainReport
	drains  int
	accepts int
	acks    int
}

func (s *stubQueue) Gate(context.Context) (offline.Gate, error) { return s.gate, nil }

func (s *stubQueue) AcceptTerms(context.Context) (offline.Gate, error) {
	s.accepts++
	s.gate.TermsAccepted = true
	return s.gate, nil
}

func (s *stubQueue) AcknowledgeRisk(context.Context) (offline.Gate, error) {
	s.acks++
	s.gate.RiskAcknowledged = true
	return s.gate, nil
}

func (s *stubQueue) Drain(context.Context) (offline.DrainReport, error) {
	s.drains++
	return s.report, nil
}

func newTestAgent(api remote, q localQueue) *agent {
	return &agent{api: api, queue: q, logg: logger.Nop()}
}

func TestCycleSkipsDrainWhileOffline(t *testing.T) {
	q := &stubQueue{}
	a := newTestAgent(&stubRemote{readyErr: errors.New("dial tcp: connection refused")}, q)

	if report := a.cycle(context.Background()); report != nil {
		t.Fatalf("expected no report while offline, got %+v", report)
	}
	if q.drains != 0 {
		t.Fatalf("expected no drain while offline, got %d", q.drains)
	}
	if a.online {
		t.Fatal("expected agent to stay offline")
	}
}

func TestCycleDrainsOnceReachable(t *testing.T) {
	q := &stubQueue{report: offline.DrainReport{Synced: 3}}
	api := &stubRemote{readyErr: errors.New("timeout")}
	a := newTestAgent(api, q)

	a.cycle(context.Background())
	api.readyErr = nil
	report := a.cycle(context.Background())

	if report == nil || report.Synced != 3 {
		t.Fatalf("expected drain report with 3 synced, got %+v", report)
	}
	if q.drains != 1 {
		t.Fatalf("expected exactly one drain, got %d", q.drains)
	}
	if !a.online {
		t.Fatal("expected agent to be online")
	}
}

func TestCycleMirrorsServerAcceptance(t *testing.T) {
	q := &stubQueue{}
	a := newTestAgent(&stubRemote{capability: types.OfflineCapabilityView{Enabled: true}}, q)

	a.cycle(context.Background())
	if !q.gate.Enabled() {
		t.Fatalf("expected local gate enabled, got %+v", q.gate)
	}

	a.cycle(context.Background())
	if q.accepts != 1 || q.acks != 1 {
		t.Fatalf("expected a single acceptance, got accepts=%d acks=%d", q.accepts, q.acks)
	}
}

func TestCycleLeavesGateWhenServerDisabled(t *testing.T) {
	q := &stubQueue{}
	a := newTestAgent(&stubRemote{capability: types.OfflineCapabilityView{Enabled: false}}, q)

	a.cycle(context.Background())
	if q.accepts != 0 || q.acks != 0 {
		t.Fatalf("expected gate untouched, got accepts=%d acks=%d", q.accepts, q.acks)
	}
	if q.drains != 1 {
		t.Fatalf("expected drain to run regardless of capability, got %d", q.drains)
	}
}

func TestCycleDrainsWhenCapabilityLookupFails(t *testing.T) {
	q := &stubQueue{}
	a := newTestAgent(&stubRemote{capErr: errors.New("503")}, q)

	if report := a.cycle(context.Background()); report == nil {
		t.Fatal("expected drain report")
	}
	if q.accepts != 0 {
		t.Fatalf("expected gate untouched, got %d accepts", q.accepts)
	}
}
