package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"recruitcore.io/internal/directory"
)

type companyStore struct{ coll *mongo.Collection }

func (c companyStore) Create(ctx context.Context, company *directory.Company) error {
	_, err := c.coll.InsertOne(ctx, company)
	return dirErr(ctx, "insert company", err)
}

func (c companyStore) Update(ctx context.Context, company *directory.Company) error {
	n, err := replaceByID(ctx, c.coll, company.ID, company)
	if err != nil {
		return dirErr(ctx, "update company", err)
	}
	if n == 0 {
		return directory.ErrNotFound
	}
	return nil
}

func (c companyStore) FindByID(ctx context.Context, id string) (*directory.Company, error) {
	var company directory.Company
	if err := c.coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&company); err != nil {
		return nil, dirErr(ctx, "find company", err)
	}
	return &company, nil
}

func (c companyStore) FindByIDs(ctx context.Context, ids []string) ([]directory.Company, error) {
	if len(ids) == 0 {
		return []directory.Company{}, nil
	}
	out, err := findAll[directory.Company](ctx, c.coll, idsFilter(ids, false), byName)
	return out, dirErr(ctx, "find companies", err)
}

type branchStore struct{ coll *mongo.Collection }

func (b branchStore) Create(ctx context.Context, branch *directory.Branch) error {
	_, err := b.coll.InsertOne(ctx, branch)
	return dirErr(ctx, "insert branch", err)
}

func (b branchStore) Update(ctx context.Context, branch *directory.Branch) error {
	n, err := replaceByID(ctx, b.coll, branch.ID, branch)
	if err != nil {
		return dirErr(ctx, "update branch", err)
	}
	if n == 0 {
		return directory.ErrNotFound
	}
	return nil
}

func (b branchStore) FindByID(ctx context.Context, id string) (*directory.Branch, error) {
	var branch directory.Branch
	if err := b.coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&branch); err != nil {
		return nil, dirErr(ctx, "find branch", err)
	}
	return &branch, nil
}

func (b branchStore) ListByCompanies(ctx context.Context, companyIDs []string, activeOnly bool) ([]directory.Branch, error) {
	if len(companyIDs) == 0 {
		return []directory.Branch{}, nil
	}
	filter := bson.D{{Key: "company_id", Value: bson.D{{Key: "$in", Value: companyIDs}}}}
	if activeOnly {
		filter = append(filter, bson.E{Key: "is_active", Value: true})
	}
	out, err := findAll[directory.Branch](ctx, b.coll, filter, byID)
	return out, dirErr(ctx, "list branches", err)
}

type memberStore struct{ coll *mongo.Collection }

func memberFilter(companyID, userID string) bson.D {
	return bson.D{{Key: "company_id", Value: companyID}, {Key: "user_id", Value: userID}}
}

func (m memberStore) Add(ctx context.Context, member *directory.Membership) error {
	_, err := m.coll.InsertOne(ctx, member)
	return dirErr(ctx, "insert membership", err)
}

func (m memberStore) Remove(ctx context.Context, companyID, userID string) error {
	res, err := m.coll.DeleteOne(ctx, memberFilter(companyID, userID))
	if err != nil {
		return dirErr(ctx, "delete membership", err)
	}
	if res.DeletedCount == 0 {
		return directory.ErrNotFound
	}
	return nil
}

func (m memberStore) Find(ctx context.Context, companyID, userID string) (*directory.Membership, error) {
	var member directory.Membership
	if err := m.coll.FindOne(ctx, memberFilter(companyID, userID)).Decode(&member); err != nil {
		return nil, dirErr(ctx, "find membership", err)
	}
	return &member, nil
}

func (m memberStore) ListByUser(ctx context.Context, userID string) ([]directory.Membership, error) {
	out, err := findAll[directory.Membership](ctx, m.coll, bson.D{{Key: "user_id", Value: userID}}, byID)
	return out, dirErr(ctx, "list memberships", err)
}

func (m memberStore) ListByCompany(ctx context.Context, companyID string) ([]directory.Membership, error) {
	out, err := findAll[directory.Membership](ctx, m.coll, bson.D{{Key: "company_id", Value: companyID}}, byID)
	return out, dirErr(ctx, "list memberships", err)
}
