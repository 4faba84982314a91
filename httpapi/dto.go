package httpapi

import (
	"time"

	"warehousematch/auth"
	"warehousematch/engagement"
	"warehousematch/payment"
)

// Response is the envelope wrapping every JSON body.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

func success(data any) Response {
	return Response{Success: true, Data: data}
}

func failure(msg, code string) Response {
	return Response{Success: false, Error: msg, Code: code}
}

// UserDTO is the public view of an account.
type UserDTO struct {
	ID          string  `json:"id"`
	Email       string  `json:"email"`
	FullName    string  `json:"full_name"`
	CompanyName *string `json:"company_name,omitempty"`
	Role        string  `json:"role"`
	CreatedAt   string  `json:"created_at"`
}

func toUserDTO(u auth.User) UserDTO {
	return UserDTO{
		ID:          u.ID,
		Email:       u.Email,
		FullName:    u.FullName,
		CompanyName: u.CompanyName,
		Role:        string(u.Role),
		CreatedAt:   u.CreatedAt.Format(time.RFC3339),
	}
}

// AuthResponse carries a fresh token plus the account it identifies.
type AuthResponse struct {
	Token string  `json:"token"`
	User  UserDTO `json:"user"`
}

// ChecklistDTO mirrors engagement.Checklist.
type ChecklistDTO struct {
	InsuranceUploaded   bool `json:"insurance_uploaded"`
	CompanyDocsUploaded bool `json:"company_docs_uploaded"`
	PaymentMethodAdded  bool `json:"payment_method_added"`
}

// MilestonesDTO exposes the set-once milestone timestamps; absent fields have
// not happened yet.
type MilestonesDTO struct {
	DealPingSentAt         *time.Time `json:"deal_ping_sent_at,omitempty"`
	DealPingRespondedAt    *time.Time `json:"deal_ping_responded_at,omitempty"`
	GuaranteeSignedAt      *time.Time `json:"guarantee_signed_at,omitempty"`
	TourRequestedAt        *time.Time `json:"tour_requested_at,omitempty"`
	TourConfirmedAt        *time.Time `json:"tour_confirmed_at,omitempty"`
	TourCompletedAt        *time.Time `json:"tour_completed_at,omitempty"`
	InstantBookRequestedAt *time.Time `json:"instant_book_requested_at,omitempty"`
	InstantBookConfirmedAt *time.Time `json:"instant_book_confirmed_at,omitempty"`
	AgreementSentAt        *time.Time `json:"agreement_sent_at,omitempty"`
	AgreementSignedAt      *time.Time `json:"agreement_signed_at,omitempty"`
	OnboardingStartedAt    *time.Time `json:"onboarding_started_at,omitempty"`
	OnboardingCompletedAt  *time.Time `json:"onboarding_completed_at,omitempty"`
	LeaseStartedAt         *time.Time `json:"lease_started_at,omitempty"`
	LeaseEndedAt           *time.Time `json:"lease_ended_at,omitempty"`
}

// EngagementDTO is the full engagement view returned to either party.
type EngagementDTO struct {
	ID                  string        `json:"id"`
	BuyerID             string        `json:"buyer_id"`
	SupplierID          string        `json:"supplier_id"`
	Status              string        `json:"status"`
	StatusBucket        string        `json:"status_bucket"`
	Version             int64         `json:"version"`
	Path                string        `json:"path"`
	Tier                string        `json:"tier"`
	MatchScore          float64       `json:"match_score"`
	MonthlyRate         float64       `json:"monthly_rate"`
	SizeSqft            int           `json:"size_sqft"`
	LeaseStartDate      *time.Time    `json:"lease_start_date,omitempty"`
	LeaseEndDate        *time.Time    `json:"lease_end_date,omitempty"`
	DeadlineAt          *time.Time    `json:"deadline_at,omitempty"`
	TourScheduledFor    *time.Time    `json:"tour_scheduled_for,omitempty"`
	TourRescheduleCount int           `json:"tour_reschedule_count"`
	DeclinedBy          *string       `json:"declined_by,omitempty"`
	DeclineReason       *string       `json:"decline_reason,omitempty"`
	DeclinedAt          *time.Time    `json:"declined_at,omitempty"`
	Checklist           ChecklistDTO  `json:"checklist"`
	BuyerSignedAt       *time.Time    `json:"buyer_signed_at,omitempty"`
	SupplierSignedAt    *time.Time    `json:"supplier_signed_at,omitempty"`
	Milestones          MilestonesDTO `json:"milestones"`
	CreatedAt           time.Time     `json:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at"`
}

func toEngagementDTO(e engagement.Engagement) EngagementDTO {
	bucket, _ := engagement.BucketOf(e.Status)
	dto := EngagementDTO{
		ID:                  e.ID,
		BuyerID:             e.BuyerID,
		SupplierID:          e.SupplierID,
		Status:              string(e.Status),
		StatusBucket:        string(bucket),
		Version:             e.Version,
		Path:                string(e.Path),
		Tier:                string(e.Tier),
		MatchScore:          e.MatchScore,
		MonthlyRate:         e.MonthlyRate,
		SizeSqft:            e.SizeSqft,
		LeaseStartDate:      e.LeaseStartDate,
		LeaseEndDate:        e.LeaseEndDate,
		DeadlineAt:          e.DeadlineAt,
		TourScheduledFor:    e.TourScheduledFor,
		TourRescheduleCount: e.TourRescheduleCount,
		DeclinedAt:          e.DeclinedAt,
		Checklist: ChecklistDTO{
			InsuranceUploaded:   e.Checklist.InsuranceUploaded,
			CompanyDocsUploaded: e.Checklist.CompanyDocsUploaded,
			PaymentMethodAdded:  e.Checklist.PaymentMethodAdded,
		},
		BuyerSignedAt:    e.BuyerSignedAt,
		SupplierSignedAt: e.SupplierSignedAt,
		Milestones: MilestonesDTO{
			DealPingSentAt:         e.Milestones.DealPingSentAt,
			DealPingRespondedAt:    e.Milestones.DealPingRespondedAt,
			GuaranteeSignedAt:      e.Milestones.GuaranteeSignedAt,
			TourRequestedAt:        e.Milestones.TourRequestedAt,
			TourConfirmedAt:        e.Milestones.TourConfirmedAt,
			TourCompletedAt:        e.Milestones.TourCompletedAt,
			InstantBookRequestedAt: e.Milestones.InstantBookRequestedAt,
			InstantBookConfirmedAt: e.Milestones.InstantBookConfirmedAt,
			AgreementSentAt:        e.Milestones.AgreementSentAt,
			AgreementSignedAt:      e.Milestones.AgreementSignedAt,
			OnboardingStartedAt:    e.Milestones.OnboardingStartedAt,
			OnboardingCompletedAt:  e.Milestones.OnboardingCompletedAt,
			LeaseStartedAt:         e.Milestones.LeaseStartedAt,
			LeaseEndedAt:           e.Milestones.LeaseEndedAt,
		},
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
	if e.DeclinedBy != nil {
		v := string(*e.DeclinedBy)
		dto.DeclinedBy = &v
	}
	if e.DeclineReason != nil {
		v := string(*e.DeclineReason)
		dto.DeclineReason = &v
	}
	return dto
}

// EngagementListResponse pages engagements for one side of the marketplace.
type EngagementListResponse struct {
	Engagements []EngagementDTO `json:"engagements"`
	Total       int             `json:"total"`
	Page        int             `json:"page"`
	PageSize    int             `json:"page_size"`
}

// TimelineEntryDTO is one row of an engagement's append-only event log.
type TimelineEntryDTO struct {
	Seq        int64          `json:"seq"`
	EventType  string         `json:"event_type"`
	ActorRole  string         `json:"actor_role"`
	FromStatus string         `json:"from_status"`
	ToStatus   string         `json:"to_status"`
	Timestamp  time.Time      `json:"timestamp"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

func toTimelineDTO(entries []engagement.EventLogEntry) []TimelineEntryDTO {
	out := make([]TimelineEntryDTO, len(entries))
	for i, en := range entries {
		out[i] = TimelineEntryDTO{
			Seq:        en.Seq,
			EventType:  string(en.EventType),
			ActorRole:  string(en.ActorRole),
			FromStatus: string(en.FromStatus),
			ToStatus:   string(en.ToStatus),
			Timestamp:  en.Timestamp,
			Metadata:   en.Metadata,
		}
	}
	return out
}

// InstallmentDTO is one row of the derived payment schedule.
type InstallmentDTO struct {
	Month   int       `json:"month"`
	DueDate time.Time `json:"due_date"`
	Amount  float64   `json:"amount"`
	Status  string    `json:"status"`
}

func toScheduleDTO(installments []payment.Installment) []InstallmentDTO {
	out := make([]InstallmentDTO, len(installments))
	for i, inst := range installments {
		out[i] = InstallmentDTO{
			Month:   inst.Month,
			DueDate: inst.DueDate,
			Amount:  inst.Amount,
			Status:  string(inst.Status),
		}
	}
	return out
}

// CreateEngagementRequest seeds a new engagement from an accepted match.
type CreateEngagementRequest struct {
	BuyerID        string     `json:"buyer_id"`
	SupplierID     string     `json:"supplier_id"`
	Tier           string     `json:"tier"`
	MatchScore     float64    `json:"match_score"`
	MonthlyRate    float64    `json:"monthly_rate"`
	SizeSqft       int        `json:"size_sqft"`
	LeaseStartDate *time.Time `json:"lease_start_date"`
	LeaseEndDate   *time.Time `json:"lease_end_date"`
}

// ApplyEventRequest fires one lifecycle event against an engagement.
type ApplyEventRequest struct {
	Event           string         `json:"event"`
	ExpectedVersion int64          `json:"expected_version"`
	Reason          string         `json:"reason,omitempty"`
	Outcome         string         `json:"outcome,omitempty"`
	Item            string         `json:"item,omitempty"`
	ProposedTime    *time.Time     `json:"proposed_time,omitempty"`
	ManualClose     bool           `json:"manual_close,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}
