package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// UsersCollection is the Mongo collection backing MongoRepository.
const UsersCollection = "users"

type userDocument struct {
	ID              string       `bson:"_id"`
	Phone           string       `bson:"phone"`
	Name            string       `bson:"name"`
	PasswordHash    string       `bson:"passwordHash"`
	IsPhoneVerified bool         `bson:"isPhoneVerified"`
	IsPanVerified   bool         `bson:"isPanVerified"`
	OTP             *otpDocument `bson:"otp,omitempty"`
	Country         string       `bson:"country"`
	IPAddress       string       `bson:"ipAddress"`
	PANNumber       string       `bson:"panNumber,omitempty"`
	PANCardImage    string       `bson:"panCardImage,omitempty"`
	LastLoginAt     *time.Time   `bson:"lastLoginAt,omitempty"`
	CreatedAt       time.Time    `bson:"createdAt"`
	UpdatedAt       time.Time    `bson:"updatedAt"`
}

// otpDocument keeps code and expiry in one subdocument so they are set and
// unset together.
type otpDocument struct {
	Code      string    `bson:"code"`
	ExpiresAt time.Time `bson:"expiresAt"`
}

// MongoRepository implements Repository on a MongoDB collection. Uniqueness of
// phone and PAN relies on the indexes created by infra.EnsureMongoIndexes.
type MongoRepository struct {
	coll *mongo.Collection
}

// NewMongoRepository builds a Mongo-backed identity repository.
func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{coll: db.Collection(UsersCollection)}
}

func (r *MongoRepository) Create(ctx context.Context, user User) error {
	_, err := r.coll.InsertOne(ctx, toDocument(user))
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicatePhone.Wrap(err)
	}
	return err
}

func (r *MongoRepository) FindByID(ctx context.Context, id string) (User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *MongoRepository) FindByPhone(ctx context.Context, phone string) (User, error) {
	return r.findOne(ctx, bson.M{"phone": phone})
}

func (r *MongoRepository) FindByPAN(ctx context.Context, pan string) (User, error) {
	return r.findOne(ctx, bson.M{"panNumber": pan})
}

func (r *MongoRepository) SetOTP(ctx context.Context, id string, otp OTPChallenge) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{
			"otp":       otpDocument{Code: otp.Code, ExpiresAt: otp.ExpiresAt.UTC()},
			"updatedAt": time.Now().UTC(),
		},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoRepository) ConfirmPhone(ctx context.Context, id, code string, at time.Time) (User, error) {
	user, err := r.findOneAndUpdate(ctx, bson.M{"_id": id, "otp.code": code}, bson.M{
		"$set":   bson.M{"isPhoneVerified": true, "updatedAt": at.UTC()},
		"$unset": bson.M{"otp": ""},
	})
	if errors.Is(err, ErrNotFound) {
		return User{}, ErrStaleOTP
	}
	return user, err
}

func (r *MongoRepository) RecordSignIn(ctx context.Context, id string, at time.Time, loc Location) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{
			"lastLoginAt": at.UTC(),
			"country":     loc.Country,
			"ipAddress":   loc.IPAddress,
			"updatedAt":   at.UTC(),
		},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoRepository) UpdatePAN(ctx context.Context, id string, update PANUpdate, at time.Time) (User, error) {
	user, err := r.findOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{
			"panNumber":     update.Number,
			"panCardImage":  update.Image,
			"isPanVerified": update.Verified,
			"updatedAt":     at.UTC(),
		},
	})
	if mongo.IsDuplicateKeyError(err) && strings.Contains(err.Error(), "panNumber") {
		return User{}, ErrDuplicatePAN.Wrap(err)
	}
	return user, err
}

func (r *MongoRepository) findOne(ctx context.Context, filter bson.M) (User, error) {
	var doc userDocument
	err := r.coll.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	return doc.toUser(), nil
}

func (r *MongoRepository) findOneAndUpdate(ctx context.Context, filter, update bson.M) (User, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc userDocument
	err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	return doc.toUser(), nil
}

func toDocument(u User) userDocument {
	doc := userDocument{
		ID:              u.ID,
		Phone:           u.Phone,
		Name:            u.Name,
		PasswordHash:    u.PasswordHash,
		IsPhoneVerified: u.IsPhoneVerified,
		IsPanVerified:   u.IsPanVerified,
		Country:         u.Country,
		IPAddress:       u.IPAddress,
		PANNumber:       u.PANNumber,
		PANCardImage:    u.PANCardImage,
		LastLoginAt:     u.LastLoginAt,
		CreatedAt:       u.CreatedAt.UTC(),
		UpdatedAt:       u.UpdatedAt.UTC(),
	}
	if u.OTP != nil {
		doc.OTP = &otpDocument{Code: u.OTP.Code, ExpiresAt: u.OTP.ExpiresAt.UTC()}
	}
	return doc
}

func (d userDocument) toUser() User {
	u := User{
		ID:              d.ID,
		Phone:           d.Phone,
		Name:            d.Name,
		PasswordHash:    d.PasswordHash,
		IsPhoneVerified: d.IsPhoneVerified,
		IsPanVerified:   d.IsPanVerified,
		Country:         d.Country,
		IPAddress:       d.IPAddress,
		PANNumber:       d.PANNumber,
		PANCardImage:    d.PANCardImage,
		LastLoginAt:     d.LastLoginAt,
		CreatedAt:       d.CreatedAt.UTC(),
		UpdatedAt:       d.UpdatedAt.UTC(),
	}
	if d.OTP != nil {
		u.OTP = &OTPChallenge{Code: d.OTP.Code, ExpiresAt: d.OTP.ExpiresAt.UTC()}
	}
	return u
}
