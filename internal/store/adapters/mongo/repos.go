package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dropDatabas3/hellomail/internal/domain/repository"
)

// ─── Users ───

type userRepo struct{ coll *mongo.Collection }

func (r *userRepo) Create(ctx context.Context, in repository.CreateUserInput) (*repository.User, error) {
	d := userDoc{
		Username:      in.Username,
		UsernameLower: strings.ToLower(in.Username),
		PasswordHash:  in.PasswordHash,
		Name:          in.Name,
		Email:         in.Email,
		Company:       in.Company,
		CreatedAt:     nowUTC(),
	}
	res, err := r.coll.InsertOne(ctx, d)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, repository.ErrConflict
		}
		return nil, fmt.Errorf("mongo: insert user: %w", err)
	}
	d.ID = insertedID(res.InsertedID)
	return d.toDomain(), nil
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*repository.User, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *userRepo) GetByUsername(ctx context.Context, username string) (*repository.User, error) {
	return r.findOne(ctx, bson.M{"usernameLower": strings.ToLower(username)})
}

func (r *userRepo) findOne(ctx context.Context, filter bson.M) (*repository.User, error) {
	var d userDoc
	if err := r.coll.FindOne(ctx, filter).Decode(&d); err != nil {
		return nil, mapErr("find user", err)
	}
	return d.toDomain(), nil
}

func (r *userRepo) SetGmailCredential(ctx context.Context, userID, credential, address string) error {
	return r.update(ctx, userID, bson.M{"$set": bson.M{
		"gmailLinked":     true,
		"gmailCredential": credential,
		"gmailAddress":    address,
	}})
}

func (r *userRepo) ClearGmailCredential(ctx context.Context, userID string) error {
	return r.update(ctx, userID, bson.M{
		"$set":   bson.M{"gmailLinked": false},
		"$unset": bson.M{"gmailCredential": "", "gmailAddress": ""},
	})
}

func (r *userRepo) update(ctx context.Context, id string, update bson.M) error {
	oid, err := parseID(id)
	if err != nil {
		return err
	}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return fmt.Errorf("mongo: update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ─── Lists ───

type listRepo struct{ coll *mongo.Collection }

func (r *listRepo) Create(ctx context.Context, in repository.CreateListInput) (*repository.RecipientList, error) {
	d := listDoc{
		OwnerID:     in.OwnerID,
		Name:        in.Name,
		Description: in.Description,
		CreatedAt:   nowUTC(),
	}
	res, err := r.coll.InsertOne(ctx, d)
	if err != nil {
		return nil, fmt.Errorf("mongo: insert list: %w", err)
	}
	d.ID = insertedID(res.InsertedID)
	l := d.toDomain()
	return &l, nil
}

func (r *listRepo) ListByOwner(ctx context.Context, ownerID string) ([]repository.RecipientList, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cur, err := r.coll.Find(ctx, bson.M{"ownerId": ownerID}, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo: find lists: %w", err)
	}
	var docs []listDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo: decode lists: %w", err)
	}
	out := make([]repository.RecipientList, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}

func (r *listRepo) GetByID(ctx context.Context, id string) (*repository.RecipientList, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	var d listDoc
	if err := r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&d); err != nil {
		return nil, mapErr("find list", err)
	}
	l := d.toDomain()
	return &l, nil
}

func (r *listRepo) Delete(ctx context.Context, id string) error {
	return deleteByID(ctx, r.coll, id)
}

// ─── Recipients ───

type recipientRepo struct{ coll *mongo.Collection }

func newRecipientDoc(in repository.CreateRecipientInput) recipientDoc {
	return recipientDoc{
		OwnerID:   in.OwnerID,
		Email:     in.Email,
		Name:      in.Name,
		ListID:    in.ListID,
		CreatedAt: nowUTC(),
	}
}

func (r *recipientRepo) Create(ctx context.Context, in repository.CreateRecipientInput) (*repository.Recipient, error) {
	d := newRecipientDoc(in)
	res, err := r.coll.InsertOne(ctx, d)
	if err != nil {
		return nil, fmt.Errorf("mongo: insert recipient: %w", err)
	}
	d.ID = insertedID(res.InsertedID)
	rc := d.toDomain()
	return &rc, nil
}

func (r *recipientRepo) CreateMany(ctx context.Context, in []repository.CreateRecipientInput) ([]repository.Recipient, error) {
	if len(in) == 0 {
		return []repository.Recipient{}, nil
	}
	docs := make([]recipientDoc, 0, len(in))
	batch := make([]interface{}, 0, len(in))
	for _, item := range in {
		d := newRecipientDoc(item)
		docs = append(docs, d)
		batch = append(batch, d)
	}
	res, err := r.coll.InsertMany(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("mongo: insert recipients: %w", err)
	}
	out := make([]repository.Recipient, 0, len(docs))
	for i, d := range docs {
		d.ID = insertedID(res.InsertedIDs[i])
		out = append(out, d.toDomain())
	}
	return out, nil
}

func (r *recipientRepo) ListByOwner(ctx context.Context, ownerID string, filter repository.RecipientFilter) ([]repository.Recipient, error) {
	q := bson.M{"ownerId": ownerID}
	if filter.ListID != "" {
		q["listId"] = filter.ListID
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := r.coll.Find(ctx, q, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo: find recipients: %w", err)
	}
	var docs []recipientDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo: decode recipients: %w", err)
	}
	out := make([]repository.Recipient, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}

func (r *recipientRepo) GetByID(ctx context.Context, id string) (*repository.Recipient, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	var d recipientDoc
	if err := r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&d); err != nil {
		return nil, mapErr("find recipient", err)
	}
	rc := d.toDomain()
	return &rc, nil
}

func (r *recipientRepo) Delete(ctx context.Context, id string) error {
	return deleteByID(ctx, r.coll, id)
}

// ─── Emails ───

type emailRepo struct{ coll *mongo.Collection }

func (r *emailRepo) Create(ctx context.Context, in repository.CreateEmailInput) (*repository.Email, error) {
	now := nowUTC()
	status := in.Status
	if status == "" {
		status = repository.EmailDraft
	}
	d := emailDoc{
		OwnerID:        in.OwnerID,
		Subject:        in.Subject,
		Body:           in.Body,
		RecipientEmail: in.RecipientEmail,
		ListID:         in.ListID,
		Status:         status,
		ScheduledFor:   in.ScheduledFor,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	res, err := r.coll.InsertOne(ctx, d)
	if err != nil {
		return nil, fmt.Errorf("mongo: insert email: %w", err)
	}
	d.ID = insertedID(res.InsertedID)
	e := d.toDomain()
	return &e, nil
}

func (r *emailRepo) find(ctx context.Context, q bson.M, sortDir int) ([]repository.Email, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: sortDir}})
	cur, err := r.coll.Find(ctx, q, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo: find emails: %w", err)
	}
	var docs []emailDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo: decode emails: %w", err)
	}
	out := make([]repository.Email, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}

func (r *emailRepo) ListByOwner(ctx context.Context, ownerID string, filter repository.EmailFilter) ([]repository.Email, error) {
	q := bson.M{"ownerId": ownerID}
	if filter.Status != "" {
		q["status"] = filter.Status
	}
	return r.find(ctx, q, -1)
}

func (r *emailRepo) ListByStatus(ctx context.Context, status repository.EmailStatus) ([]repository.Email, error) {
	return r.find(ctx, bson.M{"status": status}, 1)
}

func (r *emailRepo) GetByID(ctx context.Context, id string) (*repository.Email, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	var d emailDoc
	if err := r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&d); err != nil {
		return nil, mapErr("find email", err)
	}
	e := d.toDomain()
	return &e, nil
}

func (r *emailRepo) Delete(ctx context.Context, id string) error {
	return deleteByID(ctx, r.coll, id)
}

func (r *emailRepo) UpdateStatus(ctx context.Context, id string, upd repository.StatusUpdate) error {
	oid, err := parseID(id)
	if err != nil {
		return err
	}
	set := bson.M{"status": upd.Status, "updatedAt": nowUTC()}
	unset := bson.M{}
	if upd.SentAt != nil {
		set["sentAt"] = upd.SentAt.UTC()
	} else {
		unset["sentAt"] = ""
	}
	if upd.LastError != "" {
		set["lastError"] = upd.LastError
	} else {
		unset["lastError"] = ""
	}
	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return fmt.Errorf("mongo: update email status: %w", err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *emailRepo) Claim(ctx context.Context, id string, from []repository.EmailStatus) (*repository.Email, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	filter := bson.M{"_id": oid, "status": bson.M{"$in": from}}
	update := bson.M{"$set": bson.M{"status": repository.EmailSending, "updatedAt": nowUTC()}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var d emailDoc
	err = r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&d)
	if err == nil {
		e := d.toDomain()
		return &e, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("mongo: claim email: %w", err)
	}

	// Distinguir "no existe" de "ya no está en un estado reclamable".
	n, cerr := r.coll.CountDocuments(ctx, bson.M{"_id": oid})
	if cerr != nil {
		return nil, fmt.Errorf("mongo: claim email: %w", cerr)
	}
	if n == 0 {
		return nil, repository.ErrNotFound
	}
	return nil, repository.ErrConflict
}

func (r *emailRepo) Reschedule(ctx context.Context, id, scheduledFor string, guard repository.Guard) error {
	oid, err := parseID(id)
	if err != nil {
		return err
	}
	update := bson.M{
		"$set": bson.M{
			"scheduledFor": scheduledFor,
			"status":       repository.EmailScheduled,
			"updatedAt":    nowUTC(),
		},
		"$unset": bson.M{"lastError": ""},
	}
	res, err := r.coll.UpdateOne(ctx, guardFilter(oid, guard), update)
	if err != nil {
		return fmt.Errorf("mongo: reschedule email: %w", err)
	}
	if res.MatchedCount > 0 {
		return nil
	}

	n, err := r.coll.CountDocuments(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("mongo: reschedule email: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return repository.ErrConflict
}

// guardFilter traduce repository.Guard a un filtro sobre el documento.
func guardFilter(oid primitive.ObjectID, g repository.Guard) bson.M {
	alts := bson.A{bson.M{"status": bson.M{"$in": g.From}}}
	if !g.StaleBefore.IsZero() {
		alts = append(alts, bson.M{
			"status":    repository.EmailSending,
			"updatedAt": bson.M{"$lt": g.StaleBefore.UTC()},
		})
	}
	return bson.M{"_id": oid, "$or": alts}
}

// ─── Activities ───

type activityRepo struct{ coll *mongo.Collection }

func (r *activityRepo) Append(ctx context.Context, a repository.EmailActivity) (*repository.EmailActivity, error) {
	d := activityDoc{
		EmailID:           a.EmailID,
		OwnerID:           a.OwnerID,
		Type:              a.Type,
		RecipientEmail:    a.RecipientEmail,
		ProviderMessageID: a.ProviderMessageID,
		Timestamp:         a.Timestamp,
	}
	if d.Timestamp.IsZero() {
		d.Timestamp = nowUTC()
	}
	res, err := r.coll.InsertOne(ctx, d)
	if err != nil {
		return nil, fmt.Errorf("mongo: insert activity: %w", err)
	}
	d.ID = insertedID(res.InsertedID)
	out := d.toDomain()
	return &out, nil
}

func (r *activityRepo) ListByEmail(ctx context.Context, emailID string) ([]repository.EmailActivity, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}})
	cur, err := r.coll.Find(ctx, bson.M{"emailId": emailID}, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo: find activities: %w", err)
	}
	var docs []activityDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo: decode activities: %w", err)
	}
	out := make([]repository.EmailActivity, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}

// ─── Helpers ───

func deleteByID(ctx context.Context, coll *mongo.Collection, id string) error {
	oid, err := parseID(id)
	if err != nil {
		return err
	}
	res, err := coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("mongo: delete from %s: %w", coll.Name(), err)
	}
	if res.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func mapErr(op string, err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return repository.ErrNotFound
	}
	return fmt.Errorf("mongo: %s: %w", op, err)
}
