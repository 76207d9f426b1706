package database

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"

	"autovault/internal/models"
)

type accountDocument struct {
	ID              bson.ObjectID `bson:"_id"`
	Name            string        `bson:"name"`
	Email           string        `bson:"email"`
	Password        string        `bson:"password"`
	IsAdmin         bool          `bson:"isAdmin"`
	PurchasedImages []string      `bson:"purchasedImages"`
	CreatedAt       time.Time     `bson:"createdAt"`
	UpdatedAt       time.Time     `bson:"updatedAt"`
}

func (d *accountDocument) toModel() *models.Account {
	purchased := d.PurchasedImages
	if purchased == nil {
		purchased = []string{}
	}
	return &models.Account{
		ID:              d.ID.Hex(),
		Name:            d.Name,
		Email:           d.Email,
		PasswordHash:    d.Password,
		IsAdmin:         d.IsAdmin,
		PurchasedImages: purchased,
		CreatedAt:       d.CreatedAt.UTC(),
		UpdatedAt:       d.UpdatedAt.UTC(),
	}
}

type imageDocument struct {
	ID          bson.ObjectID `bson:"_id"`
	Title       string        `bson:"title"`
	Description string        `bson:"description"`
	Category    string        `bson:"category"`
	Price       float64       `bson:"price"`
	ImageURL    string        `bson:"imageUrl"`
	IsPremium   bool          `bson:"isPremium"`
	CreatedAt   time.Time     `bson:"createdAt"`
	UpdatedAt   time.Time     `bson:"updatedAt"`
}

func (d *imageDocument) toModel() models.Image {
	return models.Image{
		ID:          d.ID.Hex(),
		Title:       d.Title,
		Description: d.Description,
		Category:    models.Category(d.Category),
		Price:       d.Price,
		ImageURL:    d.ImageURL,
		IsPremium:   d.IsPremium,
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
	}
}

type orderDocument struct {
	ID        bson.ObjectID `bson:"_id"`
	User      string        `bson:"user"`
	Image     string        `bson:"image"`
	PaymentID string        `bson:"paymentId"`
	Amount    float64       `bson:"amount"`
	Status    string        `bson:"status"`
	CreatedAt time.Time     `bson:"createdAt"`
}

// MongoStore implements Store on MongoDB collections users, images and orders.
type MongoStore struct {
	client *mongo.Client
	users  *mongo.Collection
	images *mongo.Collection
	orders *mongo.Collection
	log    *zap.Logger
}

func NewMongoStore(ctx context.Context, uri, databaseName string, log *zap.Logger) (*MongoStore, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	db := client.Database(databaseName)
	log.Info("connected to mongo", zap.String("database", databaseName))
	return &MongoStore{
		client: client,
		users:  db.Collection("users"),
		images: db.Collection("images"),
		orders: db.Collection("orders"),
		log:    log,
	}, nil
}

// EnsureIndexes creates the unique email and payment id indexes the store relies on.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("users.email index: %w", err)
	}
	_, err = s.orders.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "paymentId", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("orders.paymentId index: %w", err)
	}
	_, err = s.orders.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user", Value: 1}, {Key: "createdAt", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("orders.user index: %w", err)
	}
	_, err = s.images.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "createdAt", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("images.createdAt index: %w", err)
	}
	return nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) CreateAccount(ctx context.Context, account *models.Account) error {
	now := time.Now().UTC()
	doc := accountDocument{
		ID:              bson.NewObjectID(),
		Name:            account.Name,
		Email:           account.Email,
		Password:        account.PasswordHash,
		IsAdmin:         account.IsAdmin,
		PurchasedImages: []string{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if _, err := s.users.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("account with email %q: %w", account.Email, ErrDuplicate)
		}
		return fmt.Errorf("failed to insert account: %w", err)
	}
	*account = *doc.toModel()
	return nil
}

func (s *MongoStore) GetAccountByID(ctx context.Context, id string) (*models.Account, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	return s.findAccount(ctx, bson.M{"_id": oid})
}

func (s *MongoStore) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	return s.findAccount(ctx, bson.M{"email": email})
}

func (s *MongoStore) findAccount(ctx context.Context, filter bson.M) (*models.Account, error) {
	var doc accountDocument
	if err := s.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	return doc.toModel(), nil
}

func (s *MongoStore) SetAdmin(ctx context.Context, email string, isAdmin bool) error {
	res, err := s.users.UpdateOne(ctx, bson.M{"email": email},
		bson.M{"$set": bson.M{"isAdmin": isAdmin, "updatedAt": time.Now().UTC()}})
	if err != nil {
		return fmt.Errorf("failed to update admin flag for %s: %w", email, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) CreateImage(ctx context.Context, image *models.Image) error {
	now := time.Now().UTC()
	doc := imageDocument{
		ID:          bson.NewObjectID(),
		Title:       image.Title,
		Description: image.Description,
		Category:    string(image.Category),
		Price:       image.Price,
		ImageURL:    image.ImageURL,
		IsPremium:   image.IsPremium,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := s.images.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to insert image: %w", err)
	}
	*image = doc.toModel()
	return nil
}

func (s *MongoStore) GetImage(ctx context.Context, id string) (*models.Image, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	var doc imageDocument
	if err := s.images.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find image %s: %w", id, err)
	}
	image := doc.toModel()
	return &image, nil
}

func (s *MongoStore) GetImages(ctx context.Context, ids []string) ([]models.Image, error) {
	oids := make([]bson.ObjectID, 0, len(ids))
	for _, id := range ids {
		if oid, err := bson.ObjectIDFromHex(id); err == nil {
			oids = append(oids, oid)
		}
	}
	if len(oids) == 0 {
		return []models.Image{}, nil
	}

	docs, err := s.findImages(ctx, bson.M{"_id": bson.M{"$in": oids}}, nil)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]models.Image, len(docs))
	for _, doc := range docs {
		byID[doc.ID.Hex()] = doc.toModel()
	}

	images := make([]models.Image, 0, len(byID))
	for _, id := range ids {
		if image, ok := byID[id]; ok {
			images = append(images, image)
		}
	}
	return images, nil
}

func (s *MongoStore) ListImages(ctx context.Context, filter models.ImageFilter) ([]models.Image, error) {
	query := bson.M{}
	if filter.Search != "" {
		query["title"] = bson.M{"$regex": regexp.QuoteMeta(filter.Search), "$options": "i"}
	}
	if filter.Category != "" {
		query["category"] = string(filter.Category)
	}
	if filter.Premium != nil {
		query["isPremium"] = *filter.Premium
	}

	var sort bson.D
	switch filter.Sort {
	case models.SortPriceAsc:
		sort = bson.D{{Key: "price", Value: 1}, {Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}
	case models.SortPriceDesc:
		sort = bson.D{{Key: "price", Value: -1}, {Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}
	default:
		sort = bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}
	}

	docs, err := s.findImages(ctx, query, sort)
	if err != nil {
		return nil, err
	}
	images := make([]models.Image, 0, len(docs))
	for _, doc := range docs {
		images = append(images, doc.toModel())
	}
	return images, nil
}

func (s *MongoStore) findImages(ctx context.Context, filter bson.M, sort bson.D) ([]imageDocument, error) {
	opts := options.Find()
	if sort != nil {
		opts.SetSort(sort)
	}
	cursor, err := s.images.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query images: %w", err)
	}
	var docs []imageDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode images: %w", err)
	}
	return docs, nil
}

func (s *MongoStore) UpdateImage(ctx context.Context, image *models.Image) error {
	oid, err := bson.ObjectIDFromHex(image.ID)
	if err != nil {
		return ErrNotFound
	}
	now := time.Now().UTC()
	res, err := s.images.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{
		"title":       image.Title,
		"description": image.Description,
		"category":    string(image.Category),
		"price":       image.Price,
		"imageUrl":    image.ImageURL,
		"isPremium":   image.IsPremium,
		"updatedAt":   now,
	}})
	if err != nil {
		return fmt.Errorf("failed to update image %s: %w", image.ID, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	image.UpdatedAt = now
	return nil
}

func (s *MongoStore) DeleteImage(ctx context.Context, id string) error {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	res, err := s.images.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("failed to delete image %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Fulfill relies on the unique paymentId index and $addToSet rather than a
// transaction, so it works against standalone servers. Both steps are safe to repeat.
func (s *MongoStore) Fulfill(ctx context.Context, grant models.Grant) (bool, error) {
	userID, err := bson.ObjectIDFromHex(grant.UserID)
	if err != nil {
		return false, fmt.Errorf("account %s: %w", grant.UserID, ErrNotFound)
	}
	count, err := s.users.CountDocuments(ctx, bson.M{"_id": userID})
	if err != nil {
		return false, fmt.Errorf("failed to look up account %s: %w", grant.UserID, err)
	}
	if count == 0 {
		return false, fmt.Errorf("account %s: %w", grant.UserID, ErrNotFound)
	}

	created := true
	_, err = s.orders.InsertOne(ctx, orderDocument{
		ID:        bson.NewObjectID(),
		User:      grant.UserID,
		Image:     grant.ImageID,
		PaymentID: grant.PaymentID,
		Amount:    grant.Amount,
		Status:    models.OrderStatusCompleted,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		if !mongo.IsDuplicateKeyError(err) {
			return false, fmt.Errorf("failed to insert order for payment %s: %w", grant.PaymentID, err)
		}
		created = false
	}

	_, err = s.users.UpdateOne(ctx, bson.M{"_id": userID}, bson.M{
		"$addToSet": bson.M{"purchasedImages": grant.ImageID},
		"$set":      bson.M{"updatedAt": time.Now().UTC()},
	})
	if err != nil {
		return false, fmt.Errorf("failed to grant image %s to %s: %w", grant.ImageID, grant.UserID, err)
	}
	return created, nil
}

func (s *MongoStore) ListOrders(ctx context.Context, userID string) ([]models.Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := s.orders.Find(ctx, bson.M{"user": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders for %s: %w", userID, err)
	}
	var docs []orderDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode orders: %w", err)
	}

	imageIDs := make([]string, 0, len(docs))
	for _, doc := range docs {
		imageIDs = append(imageIDs, doc.Image)
	}
	images, err := s.GetImages(ctx, imageIDs)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]models.Image, len(images))
	for _, image := range images {
		byID[image.ID] = image
	}

	orders := make([]models.Order, 0, len(docs))
	for _, doc := range docs {
		order := models.Order{
			ID:        doc.ID.Hex(),
			UserID:    doc.User,
			ImageID:   doc.Image,
			PaymentID: doc.PaymentID,
			Amount:    doc.Amount,
			Status:    doc.Status,
			CreatedAt: doc.CreatedAt.UTC(),
		}
		if image, ok := byID[doc.Image]; ok {
			order.Image = &image
		}
		orders = append(orders, order)
	}
	return orders, nil
}
