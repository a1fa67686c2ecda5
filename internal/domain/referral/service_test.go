package referral

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ers/ers/internal/domain/facility"
	"github.com/ers/ers/internal/platform/notify"
	"github.com/ers/ers/internal/triage"
)

type mockRepo struct {
	referrals map[uuid.UUID]*Referral
}

func newMockRepo() *mockRepo {
	return &mockRepo{referrals: make(map[uuid.UUID]*Referral)}
}

func (m *mockRepo) Create(ctx context.Context, r *Referral) error {
	r.ID = uuid.New()
	r.Status = StatusCreated
	r.CreatedAt = time.Now()
	m.referrals[r.ID] = r
	return nil
}

func (m *mockRepo) GetByID(ctx context.Context, id uuid.UUID) (*Referral, error) {
	r, ok := m.referrals[id]
	if !ok {
		return nil, ErrNotFound
	}
	return r, nil
}

func (m *mockRepo) List(ctx context.Context, f Filter, limit, offset int) ([]*Referral, int, error) {
	var out []*Referral
	for _, r := range m.referrals {
		if f.PatientID != nil && r.PatientID != *f.PatientID {
			continue
		}
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		out = append(out, r)
	}
	return out, len(out), nil
}

func (m *mockRepo) FindOpenByPatient(ctx context.Context, patientID uuid.UUID) (*Referral, error) {
	for _, r := range m.referrals {
		if r.PatientID == patientID && !r.Status.Terminal() {
			return r, nil
		}
	}
	return nil, nil
}

func (m *mockRepo) UpdateDestination(ctx context.Context, id, destinationID uuid.UUID) (*Referral, error) {
	r, ok := m.referrals[id]
	if !ok {
		return nil, ErrNotFound
	}
	if r.Status != StatusCreated {
		return nil, ErrInvalidTransition
	}
	r.DestinationFacilityID = &destinationID
	return r, nil
}

func (m *mockRepo) cas(id uuid.UUID, from, to Status, mutate func(*Referral)) (*Referral, error) {
	r, ok := m.referrals[id]
	if !ok {
		return nil, ErrNotFound
	}
	if r.Status != from {
		return nil, ErrInvalidTransition
	}
	r.Status = to
	mutate(r)
	return r, nil
}

func (m *mockRepo) MarkSent(ctx context.Context, id uuid.UUID) (*Referral, error) {
	return m.cas(id, StatusCreated, StatusSent, func(r *Referral) {
		now := time.Now()
		r.SentAt = &now
	})
}

func (m *mockRepo) MarkAccepted(ctx context.Context, id, acceptedBy uuid.UUID) (*Referral, error) {
	return m.cas(id, StatusSent, StatusAccepted, func(r *Referral) {
		now := time.Now()
		r.AcceptedAt = &now
		r.AcceptedBy = &acceptedBy
	})
}

func (m *mockRepo) MarkTransferred(ctx context.Context, id uuid.UUID) (*Referral, error) {
	return m.cas(id, StatusAccepted, StatusTransferred, func(r *Referral) {
		now := time.Now()
		r.TransferredAt = &now
	})
}

type mockFacilityRepo struct {
	byID map[uuid.UUID]*facility.Facility
}

func (m *mockFacilityRepo) Create(ctx context.Context, f *facility.Facility) error { return nil }
func (m *mockFacilityRepo) Update(ctx context.Context, f *facility.Facility) error { return nil }

func (m *mockFacilityRepo) GetByID(ctx context.Context, id uuid.UUID) (*facility.Facility, error) {
	f, ok := m.byID[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return f, nil
}

func (m *mockFacilityRepo) List(ctx context.Context, limit, offset int) ([]*facility.Facility, int, error) {
	return nil, 0, nil
}

func (m *mockFacilityRepo) ListByType(ctx context.Context, ftype facility.Type, limit, offset int) ([]*facility.Facility, int, error) {
	return nil, 0, nil
}

type mockSelector struct {
	hospital *facility.Facility
}

func (m *mockSelector) SelectHospital(ctx context.Context) (*facility.Facility, error) {
	return m.hospital, nil
}

type recordingBroadcaster struct {
	events []notify.Event
}

func (r *recordingBroadcaster) Broadcast(ctx context.Context, e notify.Event) error {
	r.events = append(r.events, e)
	return nil
}

type mockPatientSource struct {
	info *PatientInfo
}

func (m *mockPatientSource) PatientInfo(ctx context.Context, id uuid.UUID) (*PatientInfo, error) {
	if m.info == nil || m.info.ID != id {
		return nil, errors.New("patient not found")
	}
	return m.info, nil
}

func newTestService(repo *mockRepo, facilities *mockFacilityRepo, sel *mockSelector, bc *recordingBroadcaster) *Service {
	return NewService(repo, facilities, sel, bc, zerolog.Nop())
}

func seedReferral(repo *mockRepo, status Status) *Referral {
	dest := uuid.New()
	r := &Referral{
		ID:                    uuid.New(),
		PatientID:             uuid.New(),
		OriginFacilityID:      uuid.New(),
		DestinationFacilityID: &dest,
		Status:                status,
		Priority:              triage.LevelCritical,
		CreatedBy:             uuid.New(),
	}
	repo.referrals[r.ID] = r
	return r
}

func TestSend_FromCreated(t *testing.T) {
	repo := newMockRepo()
	bc := &recordingBroadcaster{}
	svc := newTestService(repo, &mockFacilityRepo{}, &mockSelector{}, bc)
	r := seedReferral(repo, StatusCreated)

	got, err := svc.Send(context.Background(), r.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusSent {
		t.Errorf("expected SENT, got %s", got.Status)
	}
	if got.SentAt == nil {
		t.Error("expected sent_at to be recorded")
	}
	if len(bc.events) != 1 || bc.events[0].Event != notify.EventReferralStatusChanged {
		t.Errorf("expected one referral_status_changed event, got %+v", bc.events)
	}
}

func TestSend_FromSentFails(t *testing.T) {
	repo := newMockRepo()
	bc := &recordingBroadcaster{}
	svc := newTestService(repo, &mockFacilityRepo{}, &mockSelector{}, bc)
	r := seedReferral(repo, StatusSent)

	_, err := svc.Send(context.Background(), r.ID)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if repo.referrals[r.ID].Status != StatusSent {
		t.Error("status must be unchanged after failed transition")
	}
	if len(bc.events) != 0 {
		t.Error("no event must be emitted on failed transition")
	}
}

func TestAccept_FromSent(t *testing.T) {
	repo := newMockRepo()
	bc := &recordingBroadcaster{}
	svc := newTestService(repo, &mockFacilityRepo{}, &mockSelector{}, bc)
	r := seedReferral(repo, StatusSent)
	doctorID := uuid.New()

	got, err := svc.Accept(context.Background(), r.ID, doctorID, "Dr. Alami")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusAccepted {
		t.Errorf("expected ACCEPTED, got %s", got.Status)
	}
	if got.AcceptedBy == nil || *got.AcceptedBy != doctorID {
		t.Error("expected accepting doctor to be recorded")
	}
	if got.AcceptedAt == nil {
		t.Error("expected accepted_at to be recorded")
	}
	if len(bc.events) != 1 || bc.events[0].Event != notify.EventReferralAccepted {
		t.Fatalf("expected one referral_accepted event, got %+v", bc.events)
	}
	if bc.events[0].Data.AcceptedBy != "Dr. Alami" {
		t.Errorf("expected acceptor name in event, got %q", bc.events[0].Data.AcceptedBy)
	}
}

func TestAccept_FromCreatedFails(t *testing.T) {
	repo := newMockRepo()
	bc := &recordingBroadcaster{}
	svc := newTestService(repo, &mockFacilityRepo{}, &mockSelector{}, bc)
	r := seedReferral(repo, StatusCreated)

	_, err := svc.Accept(context.Background(), r.ID, uuid.New(), "Dr. Alami")
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if repo.referrals[r.ID].Status != StatusCreated {
		t.Error("status must be unchanged, a referral must be sent before acceptance")
	}
}

func TestAccept_AfterAcceptanceFails(t *testing.T) {
	for _, status := range []Status{StatusAccepted, StatusTransferred} {
		repo := newMockRepo()
		bc := &recordingBroadcaster{}
		svc := newTestService(repo, &mockFacilityRepo{}, &mockSelector{}, bc)
		r := seedReferral(repo, status)

		_, err := svc.Accept(context.Background(), r.ID, uuid.New(), "Dr. Alami")
		if !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("%s: expected ErrInvalidTransition, got %v", status, err)
		}
		if repo.referrals[r.ID].Status != status {
			t.Errorf("%s: status must be unchanged after failed accept", status)
		}
		if len(bc.events) != 0 {
			t.Errorf("%s: no event must be emitted on failed accept", status)
		}
	}
}

func TestTransfer_FromAccepted(t *testing.T) {
	repo := newMockRepo()
	bc := &recordingBroadcaster{}
	svc := newTestService(repo, &mockFacilityRepo{}, &mockSelector{}, bc)
	r := seedReferral(repo, StatusAccepted)

	got, err := svc.Transfer(context.Background(), r.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusTransferred {
		t.Errorf("expected TRANSFERRED, got %s", got.Status)
	}
	if got.TransferredAt == nil {
		t.Error("expected transferred_at to be recorded")
	}
	if len(bc.events) != 1 || bc.events[0].Event != notify.EventReferralStatusChanged {
		t.Errorf("expected one referral_status_changed event, got %+v", bc.events)
	}
}

func TestTransfer_FromCreatedFails(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, &mockFacilityRepo{}, &mockSelector{}, &recordingBroadcaster{})
	r := seedReferral(repo, StatusCreated)

	_, err := svc.Transfer(context.Background(), r.ID)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestTransition_NotFound(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, &mockFacilityRepo{}, &mockSelector{}, &recordingBroadcaster{})

	_, err := svc.Send(context.Background(), uuid.New())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAutoCreate_CriticalAtClinic(t *testing.T) {
	repo := newMockRepo()
	bc := &recordingBroadcaster{}
	hospital := &facility.Facility{ID: uuid.New(), Name: "CHU Ibn Sina", Type: facility.TypeHospital}
	svc := newTestService(repo, &mockFacilityRepo{}, &mockSelector{hospital: hospital}, bc)

	patientID := uuid.New()
	r, err := svc.AutoCreateForPatient(context.Background(), TriggerInput{
		PatientID:    patientID,
		FacilityID:   uuid.New(),
		FacilityType: facility.TypeClinic,
		TriageLevel:  triage.LevelCritical,
		CreatedBy:    uuid.New(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r == nil {
		t.Fatal("expected a referral to be created")
	}
	if r.Status != StatusCreated {
		t.Errorf("expected CREATED, got %s", r.Status)
	}
	if r.DestinationFacilityID == nil || *r.DestinationFacilityID != hospital.ID {
		t.Error("expected referral to target the selected hospital")
	}
	if r.Priority != triage.LevelCritical {
		t.Errorf("expected CRITICAL priority, got %s", r.Priority)
	}
	if len(repo.referrals) != 1 {
		t.Errorf("expected exactly one referral, got %d", len(repo.referrals))
	}
	if len(bc.events) != 1 || bc.events[0].Event != notify.EventNewReferral {
		t.Fatalf("expected exactly one new_referral event, got %+v", bc.events)
	}
	if bc.events[0].Data.PatientID != patientID {
		t.Error("event must carry the patient id")
	}
}

func TestAutoCreate_NotCritical(t *testing.T) {
	repo := newMockRepo()
	bc := &recordingBroadcaster{}
	svc := newTestService(repo, &mockFacilityRepo{}, &mockSelector{}, bc)

	r, err := svc.AutoCreateForPatient(context.Background(), TriggerInput{
		PatientID:    uuid.New(),
		FacilityID:   uuid.New(),
		FacilityType: facility.TypeClinic,
		TriageLevel:  triage.LevelHigh,
		CreatedBy:    uuid.New(),
	})
	if err != nil || r != nil {
		t.Fatalf("expected no referral for non-critical patient, got %v, %v", r, err)
	}
	if len(bc.events) != 0 {
		t.Error("no event expected")
	}
}

func TestAutoCreate_AtHospital(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, &mockFacilityRepo{}, &mockSelector{}, &recordingBroadcaster{})

	r, err := svc.AutoCreateForPatient(context.Background(), TriggerInput{
		PatientID:    uuid.New(),
		FacilityID:   uuid.New(),
		FacilityType: facility.TypeHospital,
		TriageLevel:  triage.LevelCritical,
		CreatedBy:    uuid.New(),
	})
	if err != nil || r != nil {
		t.Fatalf("critical patient already at a hospital must not be referred, got %v, %v", r, err)
	}
}

func TestAutoCreate_NoHospitalAvailable(t *testing.T) {
	repo := newMockRepo()
	bc := &recordingBroadcaster{}
	svc := newTestService(repo, &mockFacilityRepo{}, &mockSelector{hospital: nil}, bc)

	_, err := svc.AutoCreateForPatient(context.Background(), TriggerInput{
		PatientID:    uuid.New(),
		FacilityID:   uuid.New(),
		FacilityType: facility.TypeClinic,
		TriageLevel:  triage.LevelCritical,
		CreatedBy:    uuid.New(),
	})
	if !errors.Is(err, ErrNoDestinationAvailable) {
		t.Fatalf("expected ErrNoDestinationAvailable, got %v", err)
	}
	if len(repo.referrals) != 0 {
		t.Error("no referral must be created when no hospital is available")
	}
	if len(bc.events) != 0 {
		t.Error("no event expected")
	}
}

func TestAutoCreate_SkipsWhenOpenReferralExists(t *testing.T) {
	repo := newMockRepo()
	bc := &recordingBroadcaster{}
	hospital := &facility.Facility{ID: uuid.New(), Name: "CHU Ibn Sina", Type: facility.TypeHospital}
	svc := newTestService(repo, &mockFacilityRepo{}, &mockSelector{hospital: hospital}, bc)

	existing := seedReferral(repo, StatusSent)

	got, err := svc.AutoCreateForPatient(context.Background(), TriggerInput{
		PatientID:    existing.PatientID,
		FacilityID:   existing.OriginFacilityID,
		FacilityType: facility.TypeClinic,
		TriageLevel:  triage.LevelCritical,
		CreatedBy:    uuid.New(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.ID != existing.ID {
		t.Fatal("expected the existing open referral to be returned")
	}
	if len(repo.referrals) != 1 {
		t.Errorf("expected no second referral, got %d", len(repo.referrals))
	}
	if len(bc.events) != 0 {
		t.Error("no event expected when skipping")
	}
}

func TestAutoCreate_AllowsNewAfterTerminal(t *testing.T) {
	repo := newMockRepo()
	bc := &recordingBroadcaster{}
	hospital := &facility.Facility{ID: uuid.New(), Name: "CHU Ibn Sina", Type: facility.TypeHospital}
	svc := newTestService(repo, &mockFacilityRepo{}, &mockSelector{hospital: hospital}, bc)

	done := seedReferral(repo, StatusTransferred)

	got, err := svc.AutoCreateForPatient(context.Background(), TriggerInput{
		PatientID:    done.PatientID,
		FacilityID:   done.OriginFacilityID,
		FacilityType: facility.TypeClinic,
		TriageLevel:  triage.LevelCritical,
		CreatedBy:    uuid.New(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.ID == done.ID {
		t.Fatal("expected a fresh referral once the previous one is terminal")
	}
	if len(bc.events) != 1 {
		t.Errorf("expected one new_referral event, got %d", len(bc.events))
	}
}

func TestManualCreate_DestinationMustBeHospital(t *testing.T) {
	repo := newMockRepo()
	clinicID := uuid.New()
	facilities := &mockFacilityRepo{byID: map[uuid.UUID]*facility.Facility{
		clinicID: {ID: clinicID, Name: "CS Agdal", Type: facility.TypeClinic},
	}}
	svc := newTestService(repo, facilities, &mockSelector{}, &recordingBroadcaster{})

	patientID := uuid.New()
	svc.SetPatientSource(&mockPatientSource{info: &PatientInfo{
		ID: patientID, FacilityID: uuid.New(), TriageLevel: triage.LevelHigh,
	}})

	_, err := svc.Create(context.Background(), CreateInput{
		PatientID:             patientID,
		DestinationFacilityID: &clinicID,
	}, uuid.New())
	if err == nil {
		t.Fatal("expected error when destination is not a hospital")
	}
}

func TestManualCreate_CopiesPriorityFromPatient(t *testing.T) {
	repo := newMockRepo()
	bc := &recordingBroadcaster{}
	hospitalID := uuid.New()
	facilities := &mockFacilityRepo{byID: map[uuid.UUID]*facility.Facility{
		hospitalID: {ID: hospitalID, Name: "CHU Ibn Sina", Type: facility.TypeHospital},
	}}
	svc := newTestService(repo, facilities, &mockSelector{}, bc)

	patientID := uuid.New()
	originID := uuid.New()
	svc.SetPatientSource(&mockPatientSource{info: &PatientInfo{
		ID: patientID, FacilityID: originID, TriageLevel: triage.LevelHigh,
	}})

	r, err := svc.Create(context.Background(), CreateInput{
		PatientID:             patientID,
		DestinationFacilityID: &hospitalID,
	}, uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Priority != triage.LevelHigh {
		t.Errorf("expected priority HIGH from patient triage level, got %s", r.Priority)
	}
	if r.OriginFacilityID != originID {
		t.Error("expected origin facility copied from patient record")
	}
	if len(bc.events) != 1 || bc.events[0].Event != notify.EventNewReferral {
		t.Fatalf("expected one new_referral event, got %+v", bc.events)
	}
}

func TestManualCreate_RequiresPatientID(t *testing.T) {
	svc := newTestService(newMockRepo(), &mockFacilityRepo{}, &mockSelector{}, &recordingBroadcaster{})
	_, err := svc.Create(context.Background(), CreateInput{}, uuid.New())
	if err == nil {
		t.Fatal("expected error for missing patient_id")
	}
}

func TestList_RejectsUnknownStatus(t *testing.T) {
	svc := newTestService(newMockRepo(), &mockFacilityRepo{}, &mockSelector{}, &recordingBroadcaster{})
	_, _, err := svc.List(context.Background(), Filter{Status: "BOGUS"}, 20, 0)
	if err == nil {
		t.Fatal("expected error for unknown status filter")
	}
}

func TestAssignDestination_RequiresHospital(t *testing.T) {
	repo := newMockRepo()
	clinicID := uuid.New()
	facilities := &mockFacilityRepo{byID: map[uuid.UUID]*facility.Facility{
		clinicID: {ID: clinicID, Name: "CS Agdal", Type: facility.TypeClinic},
	}}
	svc := newTestService(repo, facilities, &mockSelector{}, &recordingBroadcaster{})
	r := seedReferral(repo, StatusCreated)

	_, err := svc.AssignDestination(context.Background(), r.ID, clinicID)
	if err == nil {
		t.Fatal("expected error when assigning a clinic as destination")
	}
}

func TestAssignDestination_OnlyWhileCreated(t *testing.T) {
	repo := newMockRepo()
	hospitalID := uuid.New()
	facilities := &mockFacilityRepo{byID: map[uuid.UUID]*facility.Facility{
		hospitalID: {ID: hospitalID, Name: "CHU Ibn Sina", Type: facility.TypeHospital},
	}}
	svc := newTestService(repo, facilities, &mockSelector{}, &recordingBroadcaster{})
	r := seedReferral(repo, StatusSent)

	_, err := svc.AssignDestination(context.Background(), r.ID, hospitalID)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}
