package mongo

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/dropDatabas3/hellomail/internal/domain/repository"
)

// Documentos bson. Las referencias entre colecciones (ownerId, listId, emailId)
// se guardan como hex string, igual que los expone el dominio.

type userDoc struct {
	ID              primitive.ObjectID `bson:"_id,omitempty"`
	Username        string             `bson:"username"`
	UsernameLower   string             `bson:"usernameLower"`
	PasswordHash    string             `bson:"passwordHash"`
	Name            string             `bson:"name,omitempty"`
	Email           string             `bson:"email,omitempty"`
	Company         string             `bson:"company,omitempty"`
	GmailLinked     bool               `bson:"gmailLinked"`
	GmailCredential string             `bson:"gmailCredential,omitempty"`
	GmailAddress    string             `bson:"gmailAddress,omitempty"`
	CreatedAt       time.Time          `bson:"createdAt"`
}

func (d userDoc) toDomain() *repository.User {
	return &repository.User{
		ID:              d.ID.Hex(),
		Username:        d.Username,
		PasswordHash:    d.PasswordHash,
		Name:            d.Name,
		Email:           d.Email,
		Company:         d.Company,
		GmailLinked:     d.GmailLinked,
		GmailCredential: d.GmailCredential,
		GmailAddress:    d.GmailAddress,
		CreatedAt:       d.CreatedAt,
	}
}

type listDoc struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	OwnerID     string             `bson:"ownerId"`
	Name        string             `bson:"name"`
	Description string             `bson:"description,omitempty"`
	CreatedAt   time.Time          `bson:"createdAt"`
}

func (d listDoc) toDomain() repository.RecipientList {
	return repository.RecipientList{
		ID:          d.ID.Hex(),
		OwnerID:     d.OwnerID,
		Name:        d.Name,
		Description: d.Description,
		CreatedAt:   d.CreatedAt,
	}
}

type recipientDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	OwnerID   string             `bson:"ownerId"`
	Email     string             `bson:"email"`
	Name      string             `bson:"name,omitempty"`
	ListID    string             `bson:"listId,omitempty"`
	CreatedAt time.Time          `bson:"createdAt"`
}

func (d recipientDoc) toDomain() repository.Recipient {
	return repository.Recipient{
		ID:        d.ID.Hex(),
		OwnerID:   d.OwnerID,
		Email:     d.Email,
		Name:      d.Name,
		ListID:    d.ListID,
		CreatedAt: d.CreatedAt,
	}
}

type emailDoc struct {
	ID             primitive.ObjectID     `bson:"_id,omitempty"`
	OwnerID        string                 `bson:"ownerId"`
	Subject        string                 `bson:"subject"`
	Body           string                 `bson:"body"`
	RecipientEmail string                 `bson:"recipientEmail,omitempty"`
	ListID         string                 `bson:"listId,omitempty"`
	Status         repository.EmailStatus `bson:"status"`
	ScheduledFor   string                 `bson:"scheduledFor,omitempty"`
	SentAt         *time.Time             `bson:"sentAt,omitempty"`
	LastError      string                 `bson:"lastError,omitempty"`
	CreatedAt      time.Time              `bson:"createdAt"`
	UpdatedAt      time.Time              `bson:"updatedAt"`
}

func (d emailDoc) toDomain() repository.Email {
	return repository.Email{
		ID:             d.ID.Hex(),
		OwnerID:        d.OwnerID,
		Subject:        d.Subject,
		Body:           d.Body,
		RecipientEmail: d.RecipientEmail,
		ListID:         d.ListID,
		Status:         d.Status,
		ScheduledFor:   d.ScheduledFor,
		SentAt:         d.SentAt,
		LastError:      d.LastError,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

type activityDoc struct {
	ID                primitive.ObjectID      `bson:"_id,omitempty"`
	EmailID           string                  `bson:"emailId"`
	OwnerID           string                  `bson:"ownerId"`
	Type              repository.ActivityType `bson:"type"`
	RecipientEmail    string                  `bson:"recipientEmail"`
	ProviderMessageID string                  `bson:"providerMessageId,omitempty"`
	Timestamp         time.Time               `bson:"timestamp"`
}

func (d activityDoc) toDomain() repository.EmailActivity {
	return repository.EmailActivity{
		ID:                d.ID.Hex(),
		EmailID:           d.EmailID,
		OwnerID:           d.OwnerID,
		Type:              d.Type,
		RecipientEmail:    d.RecipientEmail,
		ProviderMessageID: d.ProviderMessageID,
		Timestamp:         d.Timestamp,
	}
}

// parseID convierte un id hex. Un id mal formado no puede existir, así que se
// reporta como ErrNotFound.
func parseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(strings.TrimSpace(id))
	if err != nil {
		return primitive.NilObjectID, repository.ErrNotFound
	}
	return oid, nil
}

func nowUTC() time.Time {
	// Mongo guarda milisegundos; truncamos para que el valor devuelto coincida con el leído.
	return time.Now().UTC().Truncate(time.Millisecond)
}

func insertedID(v interface{}) primitive.ObjectID {
	if oid, ok := v.(primitive.ObjectID); ok {
		return oid
	}
	return primitive.NilObjectID
}
