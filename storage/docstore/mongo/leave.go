package mongodb

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/trezcool/smartbackpack/core/leave"
)

type (
	analysisDoc struct {
		Summary    string               `bson:"summary"`
		RiskScore  float64              `bson:"risk_score"`
		AnalyzedAt time.Time            `bson:"analyzed_at"`
		Input      *leave.AnalysisInput `bson:"input,omitempty"`
	}

	chatMessageDoc struct {
		Role    string `bson:"role"`
		Content string `bson:"content"`
	}

	leaveDoc struct {
		ID          string           `bson:"_id"`
		StudentID   string           `bson:"student_id"`
		StudentName string           `bson:"student_name"`
		StartDate   string           `bson:"start_date"`
		EndDate     string           `bson:"end_date"`
		Reason      string           `bson:"reason"`
		Status      string           `bson:"status"`
		Analysis    *analysisDoc     `bson:"analysis,omitempty"`
		Chat        []chatMessageDoc `bson:"chat"`
		DecidedBy   string           `bson:"decided_by"`
		CreatedAt   time.Time        `bson:"created_at"`
		UpdatedAt   time.Time        `bson:"updated_at"`
		DecidedAt   *time.Time       `bson:"decided_at,omitempty"`
	}
)

func toLeaveDoc(r leave.Request) leaveDoc {
	doc := leaveDoc{
		ID:          r.ID,
		StudentID:   r.StudentID,
		StudentName: r.StudentName,
		StartDate:   r.StartDate,
		EndDate:     r.EndDate,
		Reason:      r.Reason,
		Status:      r.Status,
		Chat:        make([]chatMessageDoc, 0, len(r.Chat)),
		DecidedBy:   r.DecidedBy,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
		DecidedAt:   r.DecidedAt,
	}
	if r.Analysis != nil {
		doc.Analysis = &analysisDoc{
			Summary:    r.Analysis.Summary,
			RiskScore:  r.Analysis.RiskScore,
			AnalyzedAt: r.Analysis.AnalyzedAt,
			Input:      r.Analysis.Input,
		}
	}
	for _, m := range r.Chat {
		doc.Chat = append(doc.Chat, chatMessageDoc{Role: m.Role, Content: m.Content})
	}
	return doc
}

func (d leaveDoc) toRequest() leave.Request {
	r := leave.Request{
		ID:          d.ID,
		StudentID:   d.StudentID,
		StudentName: d.StudentName,
		StartDate:   d.StartDate,
		EndDate:     d.EndDate,
		Reason:      d.Reason,
		Status:      d.Status,
		Chat:        make([]leave.ChatMessage, 0, len(d.Chat)),
		DecidedBy:   d.DecidedBy,
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
	}
	if d.Analysis != nil {
		r.Analysis = &leave.Analysis{
			Summary:    d.Analysis.Summary,
			RiskScore:  d.Analysis.RiskScore,
			AnalyzedAt: d.Analysis.AnalyzedAt.UTC(),
			Input:      d.Analysis.Input,
		}
	}
	if d.DecidedAt != nil {
		t := d.DecidedAt.UTC()
		r.DecidedAt = &t
	}
	for _, m := range d.Chat {
		r.Chat = append(r.Chat, leave.ChatMessage{Role: m.Role, Content: m.Content})
	}
	return r
}

type leaveRepository struct {
	col *mongo.Collection
}

var _ leave.Repository = (*leaveRepository)(nil)

func NewLeaveRepository(db *mongo.Database) leave.Repository {
	return &leaveRepository{col: db.Collection(leaveCol)}
}

func (repo *leaveRepository) CreateRequest(ctx context.Context, r leave.Request) (leave.Request, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if _, err := repo.col.InsertOne(ctx, toLeaveDoc(r)); err != nil {
		return leave.Request{}, errors.Wrap(err, "inserting leave request")
	}
	return r, nil
}

func (repo *leaveRepository) GetRequestByID(ctx context.Context, id string) (leave.Request, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var doc leaveDoc
	if err := repo.col.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if err == mongo.ErrNoDocuments {
			return leave.Request{}, leave.ErrNotFound
		}
		return leave.Request{}, errors.Wrap(err, "finding leave request")
	}
	return doc.toRequest(), nil
}

func (repo *leaveRepository) query(ctx context.Context, q bson.M, direction int) ([]leave.Request, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	cur, err := repo.col.Find(ctx, q,
		options.Find().SetSort(bson.D{{Key: "created_at", Value: direction}, {Key: "_id", Value: direction}}))
	if err != nil {
		return nil, errors.Wrap(err, "querying leave requests")
	}
	docs, err := decodeAll[leaveDoc](ctx, cur)
	if err != nil {
		return nil, errors.Wrap(err, "decoding leave requests")
	}
	reqs := make([]leave.Request, 0, len(docs))
	for _, d := range docs {
		reqs = append(reqs, d.toRequest())
	}
	return reqs, nil
}

func (repo *leaveRepository) QueryRequestsByStudent(ctx context.Context, studentID string) ([]leave.Request, error) {
	return repo.query(ctx, bson.M{"student_id": studentID}, -1)
}

func (repo *leaveRepository) QueryRequestsByStatus(ctx context.Context, status string) ([]leave.Request, error) {
	return repo.query(ctx, bson.M{"status": status}, 1)
}

func (repo *leaveRepository) UpdateRequest(ctx context.Context, r leave.Request) (leave.Request, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	doc := toLeaveDoc(r)
	set := bson.M{
		"student_name": doc.StudentName,
		"start_date":   doc.StartDate,
		"end_date":     doc.EndDate,
		"reason":       doc.Reason,
		"status":       doc.Status,
		"analysis":     doc.Analysis,
		"chat":         doc.Chat,
		"decided_by":   doc.DecidedBy,
		"updated_at":   doc.UpdatedAt,
		"decided_at":   doc.DecidedAt,
	}
	var updated leaveDoc
	err := repo.col.FindOneAndUpdate(ctx, bson.M{"_id": r.ID}, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&updated)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return leave.Request{}, leave.ErrNotFound
		}
		return leave.Request{}, errors.Wrap(err, "updating leave request")
	}
	return updated.toRequest(), nil
}
