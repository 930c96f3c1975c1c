package memory

import (
	"context"

	"github.com/greenpath/greenpath/internal/apperror"
	"github.com/greenpath/greenpath/internal/model"
)

// === WASTE REPORTS ===

func (s *Store) CreateWasteReport(_ context.Context, r *model.WasteReport) error {
	defer s.write()()
	if err := s.requireUser("userId", r.UserID); err != nil {
		return err
	}
	if err := s.requireOptionalUser("assignedDealerId", r.AssignedDealerID); err != nil {
		return err
	}
	r.ID = s.st.reports.next()
	r.CreatedAt = s.now()
	if r.Status == "" {
		r.Status = model.WasteReportPending
	}
	if r.Images == nil {
		r.Images = []string{}
	}
	s.st.reports.put(r.ID, *r)
	return nil
}

func (s *Store) GetWasteReport(_ context.Context, id int64) (*model.WasteReport, error) {
	defer s.read()()
	r, ok := s.st.reports.get(id)
	if !ok {
		return nil, apperror.NotFound("waste report", id)
	}
	return &r, nil
}

func (s *Store) ListWasteReports(_ context.Context, f model.WasteReportFilter) ([]model.WasteReport, error) {
	defer s.read()()
	return s.st.reports.scan(f.Match), nil
}

func (s *Store) UpdateWasteReport(_ context.Context, id int64, p model.WasteReportPatch) (*model.WasteReport, error) {
	defer s.write()()
	r, ok := s.st.reports.get(id)
	if !ok {
		return nil, apperror.NotFound("waste report", id)
	}
	if err := s.requireOptionalUser("assignedDealerId", p.AssignedDealerID); err != nil {
		return nil, err
	}
	if err := s.requireOptionalUser("rejectedByDealerId", p.RejectedByDealerID); err != nil {
		return nil, err
	}
	p.Apply(&r)
	s.st.reports.put(id, r)
	return &r, nil
}

// === DONATIONS ===

func (s *Store) CreateDonation(_ context.Context, d *model.Donation) error {
	defer s.write()()
	if err := s.requireUser("userId", d.UserID); err != nil {
		return err
	}
	if err := s.requireOptionalUser("requestedByOrganizationId", d.RequestedByOrganizationID); err != nil {
		return err
	}
	d.ID = s.st.donations.next()
	d.CreatedAt = s.now()
	if d.Status == "" {
		d.Status = model.DonationAvailable
	}
	if d.Images == nil {
		d.Images = []string{}
	}
	s.st.donations.put(d.ID, *d)
	return nil
}

func (s *Store) GetDonation(_ context.Context, id int64) (*model.Donation, error) {
	defer s.read()()
	d, ok := s.st.donations.get(id)
	if !ok {
		return nil, apperror.NotFound("donation", id)
	}
	return &d, nil
}

func (s *Store) ListDonations(_ context.Context, f model.DonationFilter) ([]model.Donation, error) {
	defer s.read()()
	return s.st.donations.scan(f.Match), nil
}

func (s *Store) UpdateDonation(_ context.Context, id int64, p model.DonationPatch) (*model.Donation, error) {
	defer s.write()()
	d, ok := s.st.donations.get(id)
	if !ok {
		return nil, apperror.NotFound("donation", id)
	}
	if err := s.requireOptionalUser("requestedByOrganizationId", p.RequestedByOrganizationID); err != nil {
		return nil, err
	}
	p.Apply(&d)
	s.st.donations.put(id, d)
	return &d, nil
}

// === EVENTS ===

func (s *Store) CreateEvent(_ context.Context, e *model.Event) error {
	defer s.write()()
	if err := s.requireUser("organizerId", e.OrganizerID); err != nil {
		return err
	}
	e.ID = s.st.events.next()
	e.CreatedAt = s.now()
	if e.Status == "" {
		e.Status = model.EventUpcoming
	}
	s.st.events.put(e.ID, *e)
	return nil
}

func (s *Store) GetEvent(_ context.Context, id int64) (*model.Event, error) {
	defer s.read()()
	e, ok := s.st.events.get(id)
	if !ok {
		return nil, apperror.NotFound("event", id)
	}
	return &e, nil
}

func (s *Store) ListEvents(_ context.Context, f model.EventFilter) ([]model.Event, error) {
	defer s.read()()
	return s.st.events.scan(f.Match), nil
}

func (s *Store) UpdateEvent(_ context.Context, id int64, p model.EventPatch) (*model.Event, error) {
	defer s.write()()
	e, ok := s.st.events.get(id)
	if !ok {
		return nil, apperror.NotFound("event", id)
	}
	p.Apply(&e)
	s.st.events.put(id, e)
	return &e, nil
}

func (s *Store) findParticipant(eventID, userID int64) (model.EventParticipant, bool) {
	for _, id := range s.st.participants.order {
		p := s.st.participants.rows[id]
		if p.EventID == eventID && p.UserID == userID {
			return p, true
		}
	}
	return model.EventParticipant{}, false
}

func (s *Store) AddEventParticipant(_ context.Context, p *model.EventParticipant) error {
	defer s.write()()
	if _, ok := s.st.events.rows[p.EventID]; !ok {
		return apperror.NotFound("event", p.EventID)
	}
	if err := s.requireUser("userId", p.UserID); err != nil {
		return err
	}
	if _, dup := s.findParticipant(p.EventID, p.UserID); dup {
		return apperror.Conflict("event participant", p.UserID)
	}
	p.ID = s.st.participants.next()
	p.JoinedAt = s.now()
	s.st.participants.put(p.ID, *p)
	return nil
}

func (s *Store) GetEventParticipant(_ context.Context, eventID, userID int64) (*model.EventParticipant, error) {
	defer s.read()()
	p, ok := s.findParticipant(eventID, userID)
	if !ok {
		return nil, apperror.NotFound("event participant", userID)
	}
	return &p, nil
}

func (s *Store) ListEventParticipants(_ context.Context, eventID int64) ([]model.EventParticipant, error) {
	defer s.read()()
	return s.st.participants.scan(func(p *model.EventParticipant) bool {
		return p.EventID == eventID
	}), nil
}

func (s *Store) RemoveEventParticipant(_ context.Context, eventID, userID int64) error {
	defer s.write()()
	p, ok := s.findParticipant(eventID, userID)
	if !ok {
		return apperror.NotFound("event participant", userID)
	}
	s.st.participants.remove(p.ID)
	return nil
}

// === MEDIA ===

func (s *Store) CreateMedia(_ context.Context, m *model.MediaContent) error {
	defer s.write()()
	if err := s.requireOptionalUser("authorId", m.AuthorID); err != nil {
		return err
	}
	m.ID = s.st.media.next()
	m.CreatedAt = s.now()
	if m.Tags == nil {
		m.Tags = []string{}
	}
	s.st.media.put(m.ID, *m)
	return nil
}

func (s *Store) GetMedia(_ context.Context, id int64) (*model.MediaContent, error) {
	defer s.read()()
	m, ok := s.st.media.get(id)
	if !ok {
		return nil, apperror.NotFound("media content", id)
	}
	return &m, nil
}

func (s *Store) ListMedia(_ context.Context, f model.MediaFilter) ([]model.MediaContent, error) {
	defer s.read()()
	return s.st.media.scan(f.Match), nil
}

func (s *Store) UpdateMedia(_ context.Context, id int64, p model.MediaPatch) (*model.MediaContent, error) {
	defer s.write()()
	m, ok := s.st.media.get(id)
	if !ok {
		return nil, apperror.NotFound("media content", id)
	}
	p.Apply(&m)
	s.st.media.put(id, m)
	return &m, nil
}

// === ISSUES & HELP REQUESTS ===

func (s *Store) CreateIssue(_ context.Context, i *model.Issue) error {
	defer s.write()()
	if err := s.requireUser("userId", i.UserID); err != nil {
		return err
	}
	if err := s.requireOptionalUser("assignedOrganizationId", i.AssignedOrganizationID); err != nil {
		return err
	}
	i.ID = s.st.issues.next()
	i.CreatedAt = s.now()
	if i.Status == "" {
		i.Status = model.CaseOpen
	}
	s.st.issues.put(i.ID, *i)
	return nil
}

func (s *Store) GetIssue(_ context.Context, id int64) (*model.Issue, error) {
	defer s.read()()
	i, ok := s.st.issues.get(id)
	if !ok {
		return nil, apperror.NotFound("issue", id)
	}
	return &i, nil
}

func (s *Store) ListIssues(_ context.Context, f model.CaseFilter) ([]model.Issue, error) {
	defer s.read()()
	return s.st.issues.scan(f.MatchIssue), nil
}

func (s *Store) UpdateIssue(_ context.Context, id int64, p model.CasePatch) (*model.Issue, error) {
	defer s.write()()
	i, ok := s.st.issues.get(id)
	if !ok {
		return nil, apperror.NotFound("issue", id)
	}
	if err := s.requireOptionalUser("assignedOrganizationId", p.AssignedOrganizationID); err != nil {
		return nil, err
	}
	p.ApplyIssue(&i)
	s.st.issues.put(id, i)
	return &i, nil
}

func (s *Store) CreateHelpRequest(_ context.Context, h *model.HelpRequest) error {
	defer s.write()()
	if err := s.requireUser("userId", h.UserID); err != nil {
		return err
	}
	if err := s.requireOptionalUser("assignedOrganizationId", h.AssignedOrganizationID); err != nil {
		return err
	}
	h.ID = s.st.helpRequests.next()
	h.CreatedAt = s.now()
	if h.Status == "" {
		h.Status = model.CaseOpen
	}
	if h.Urgency == "" {
		h.Urgency = model.UrgencyMedium
	}
	s.st.helpRequests.put(h.ID, *h)
	return nil
}

func (s *Store) GetHelpRequest(_ context.Context, id int64) (*model.HelpRequest, error) {
	defer s.read()()
	h, ok := s.st.helpRequests.get(id)
	if !ok {
		return nil, apperror.NotFound("help request", id)
	}
	return &h, nil
}

func (s *Store) ListHelpRequests(_ context.Context, f model.CaseFilter) ([]model.HelpRequest, error) {
	defer s.read()()
	return s.st.helpRequests.scan(f.MatchHelpRequest), nil
}

func (s *Store) UpdateHelpRequest(_ context.Context, id int64, p model.CasePatch) (*model.HelpRequest, error) {
	defer s.write()()
	h, ok := s.st.helpRequests.get(id)
	if !ok {
		return nil, apperror.NotFound("help request", id)
	}
	if err := s.requireOptionalUser("assignedOrganizationId", p.AssignedOrganizationID); err != nil {
		return nil, err
	}
	p.ApplyHelpRequest(&h)
	s.st.helpRequests.put(id, h)
	return &h, nil
}

// === FEEDBACK ===

func (s *Store) CreateFeedback(_ context.Context, fb *model.Feedback) error {
	defer s.write()()
	if err := s.requireUser("userId", fb.UserID); err != nil {
		return err
	}
	fb.ID = s.st.feedback.next()
	fb.CreatedAt = s.now()
	if fb.Status == "" {
		fb.Status = model.FeedbackSubmitted
	}
	s.st.feedback.put(fb.ID, *fb)
	return nil
}

func (s *Store) GetFeedback(_ context.Context, id int64) (*model.Feedback, error) {
	defer s.read()()
	fb, ok := s.st.feedback.get(id)
	if !ok {
		return nil, apperror.NotFound("feedback", id)
	}
	return &fb, nil
}

func (s *Store) ListFeedback(_ context.Context, f model.FeedbackFilter) ([]model.Feedback, error) {
	defer s.read()()
	return s.st.feedback.scan(f.Match), nil
}

func (s *Store) UpdateFeedback(_ context.Context, id int64, p model.FeedbackPatch) (*model.Feedback, error) {
	defer s.write()()
	fb, ok := s.st.feedback.get(id)
	if !ok {
		return nil, apperror.NotFound("feedback", id)
	}
	p.Apply(&fb)
	s.st.feedback.put(id, fb)
	return &fb, nil
}
