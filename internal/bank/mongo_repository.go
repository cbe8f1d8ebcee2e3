package bank

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// AccountsCollection is the Mongo collection backing MongoRepository.
const AccountsCollection = "bankAccounts"

type accountDocument struct {
	ID                string    `bson:"_id"`
	UserID            string    `bson:"userId"`
	Phone             string    `bson:"phone"`
	AccountHolderName string    `bson:"accountHolderName"`
	AccountNumber     string    `bson:"accountNumber"`
	IFSCCode          string    `bson:"ifscCode"`
	BankName          string    `bson:"bankName"`
	BranchName        string    `bson:"branchName"`
	AccountType       string    `bson:"accountType"`
	IsVerified        bool      `bson:"isVerified"`
	CreatedAt         time.Time `bson:"createdAt"`
	UpdatedAt         time.Time `bson:"updatedAt"`
}

// MongoRepository stores accounts in MongoDB. The unique accountNumber index
// is created by infra.EnsureMongoIndexes.
type MongoRepository struct {
	coll *mongo.Collection
}

// NewMongoRepository builds a Mongo-backed bank account repository.
func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{coll: db.Collection(AccountsCollection)}
}

func (r *MongoRepository) Create(ctx context.Context, a Account) error {
	_, err := r.coll.InsertOne(ctx, accountDocument(a))
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateAccount.Wrap(err)
	}
	return err
}

func (r *MongoRepository) ListByUser(ctx context.Context, userID string) ([]Account, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cur, err := r.coll.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, err
	}
	var docs []accountDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	accounts := make([]Account, 0, len(docs))
	for _, d := range docs {
		a := Account(d)
		a.CreatedAt = a.CreatedAt.UTC()
		a.UpdatedAt = a.UpdatedAt.UTC()
		accounts = append(accounts, a)
	}
	return accounts, nil
}
