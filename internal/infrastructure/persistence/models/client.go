package models

import (
	"github.com/erp/invoicing/internal/domain/invoicing"
	"github.com/google/uuid"
)

// ClientModel is the read model of an invoiced client
type ClientModel struct {
	BaseModel
	TenantID    uuid.UUID            `gorm:"type:uuid;not null;index"`
	CompanyName string               `gorm:"type:varchar(200);not null"`
	Email       string               `gorm:"type:varchar(255)"`
	Contacts    []ClientContactModel `gorm:"foreignKey:ClientID"`
}

// TableName returns the table name for GORM
func (ClientModel) TableName() string {
	return "clients"
}

// ToDomain converts the persistence model to a domain Client
func (m *ClientModel) ToDomain() *invoicing.Client {
	client := &invoicing.Client{
		ID:          m.ID,
		TenantID:    m.TenantID,
		CompanyName: m.CompanyName,
		Email:       m.Email,
		Contacts:    make([]invoicing.ClientContact, 0, len(m.Contacts)),
	}
	for _, c := range m.Contacts {
		client.Contacts = append(client.Contacts, invoicing.ClientContact{
			ID:               c.ID,
			FirstName:        c.FirstName,
			LastName:         c.LastName,
			Email:            c.Email,
			IsAdministration: c.IsAdministration,
		})
	}
	return client
}

// ClientContactModel is a person at a client
type ClientContactModel struct {
	BaseModel
	ClientID         uuid.UUID `gorm:"type:uuid;not null;index"`
	FirstName        string    `gorm:"type:varchar(100)"`
	LastName         string    `gorm:"type:varchar(100)"`
	Email            string    `gorm:"type:varchar(255)"`
	IsAdministration bool      `gorm:"not null;default:false"`
}

// TableName returns the table name for GORM
func (ClientContactModel) TableName() string {
	return "client_contacts"
}

// ProfileModel is the read model of a sending user's profile
type ProfileModel struct {
	BaseModel
	TenantID     uuid.UUID `gorm:"type:uuid;not null;index"`
	FirstName    string    `gorm:"type:varchar(100)"`
	LastName     string    `gorm:"type:varchar(100)"`
	BusinessName string    `gorm:"type:varchar(200)"`
	Email        string    `gorm:"type:varchar(255)"`
}

// TableName returns the table name for GORM
func (ProfileModel) TableName() string {
	return "sender_profiles"
}

// ToDomain converts the persistence model to a domain SenderProfile
func (m *ProfileModel) ToDomain() *invoicing.SenderProfile {
	return &invoicing.SenderProfile{
		UserID:       m.ID,
		FirstName:    m.FirstName,
		LastName:     m.LastName,
		BusinessName: m.BusinessName,
		Email:        m.Email,
	}
}
