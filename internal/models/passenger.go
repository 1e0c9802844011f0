package models

// LoyaltyTier represents a passenger's loyalty program tier
type LoyaltyTier string

const (
	TierMember        LoyaltyTier = "MEMBER"
	TierPreferred     LoyaltyTier = "PREFERRED"
	TierPreferredPlus LoyaltyTier = "PREFERRED_PLUS"
)

// NotificationPreferences holds a passenger's opt-in flags per channel
type NotificationPreferences struct {
	Email bool `json:"email"`
	SMS   bool `json:"sms"`
	Push  bool `json:"push"`
}

// Passenger represents a passenger record. Email and Phone are sensitive
// and must never appear in external read responses; see PassengerView.
type Passenger struct {
	PassengerID       string                  `json:"passenger_id"`
	FirstName         string                  `json:"first_name"`
	LastName          string                  `json:"last_name"`
	Email             string                  `json:"email"`
	Phone             string                  `json:"phone"`
	Tier              LoyaltyTier             `json:"tier"`
	Preferences       NotificationPreferences `json:"notification_preferences"`
	SpecialAssistance []string                `json:"special_assistance,omitempty"`
}

// PassengerView is the external read representation of a Passenger with
// contact fields stripped.
type PassengerView struct {
	PassengerID       string                  `json:"passenger_id"`
	FirstName         string                  `json:"first_name"`
	LastName          string                  `json:"last_name"`
	Tier              LoyaltyTier             `json:"tier"`
	Preferences       NotificationPreferences `json:"notification_preferences"`
	SpecialAssistance []string                `json:"special_assistance,omitempty"`
}

// View returns the sanitized external representation.
func (p *Passenger) View() PassengerView {
	return PassengerView{
		PassengerID:       p.PassengerID,
		FirstName:         p.FirstName,
		LastName:          p.LastName,
		Tier:              p.Tier,
		Preferences:       p.Preferences,
		SpecialAssistance: p.SpecialAssistance,
	}
}
