package database

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"time"

	"github.com/wavecrate/wavecrate/src/music"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	albumsCollection = "albums"
	tracksCollection = "tracks"
)

// MongoCatalog is a MongoDB implementation of the Catalog interface.
// Albums and tracks live in separate collections keyed by string _id;
// the album/track pairing is maintained with $addToSet and $pull so that
// concurrent appends never clobber each other.
type MongoCatalog struct {
	client *mongo.Client
	albums *mongo.Collection
	tracks *mongo.Collection
}

// NewMongoCatalog connects to MongoDB, pings it, and ensures the indexes
// the catalog relies on.
func NewMongoCatalog(ctx context.Context, uri, dbName string) (*MongoCatalog, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, music.E(music.KindTransient, "database.NewMongoCatalog", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, music.E(music.KindTransient, "database.NewMongoCatalog", err)
	}

	db := client.Database(dbName)
	c := &MongoCatalog{
		client: client,
		albums: db.Collection(albumsCollection),
		tracks: db.Collection(tracksCollection),
	}
	if err := c.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	slog.Info("Connected to MongoDB", "database", dbName)
	return c, nil
}

// Close disconnects the underlying client.
func (c *MongoCatalog) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

func (c *MongoCatalog) ensureIndexes(ctx context.Context) error {
	_, err := c.albums.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "normalized_name", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	})
	if err != nil {
		return music.E(music.KindTransient, "database.ensureIndexes", err)
	}
	_, err = c.tracks.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "album_id", Value: 1}}},
		{Keys: bson.D{{Key: "title", Value: 1}}},
		{
			Keys: bson.D{
				{Key: "title", Value: "text"},
				{Key: "album_name", Value: "text"},
				{Key: "genres", Value: "text"},
			},
		},
	})
	if err != nil {
		return music.E(music.KindTransient, "database.ensureIndexes", err)
	}
	return nil
}

// mapError converts driver errors into domain errors so callers can key
// retry decisions off the kind.
func mapError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return music.E(music.KindNotFound, op, err)
	case mongo.IsDuplicateKeyError(err):
		return music.E(music.KindConsistency, op, err)
	default:
		// Timeouts, broken connections, and anything else the driver
		// surfaces are worth a retry.
		return music.E(music.KindTransient, op, err)
	}
}

// substringFilter builds a case-insensitive substring match on the given
// fields. The query is quoted so user input cannot inject regex syntax.
func substringFilter(query string, fields ...string) bson.M {
	pattern := regexp.QuoteMeta(query)
	or := make(bson.A, 0, len(fields))
	for _, f := range fields {
		or = append(or, bson.M{f: bson.M{"$regex": pattern, "$options": "i"}})
	}
	return bson.M{"$or": or}
}

// CreateAlbum inserts a new album after validating it.
func (c *MongoCatalog) CreateAlbum(ctx context.Context, album *music.Album) error {
	if err := album.Validate(); err != nil {
		return err
	}
	if _, err := c.albums.InsertOne(ctx, album); err != nil {
		return mapError("database.CreateAlbum", err)
	}
	return nil
}

// GetAlbum retrieves an album by its ID.
func (c *MongoCatalog) GetAlbum(ctx context.Context, id string) (*music.Album, error) {
	var album music.Album
	err := c.albums.FindOne(ctx, bson.M{"_id": id}).Decode(&album)
	if err != nil {
		return nil, mapError("database.GetAlbum", err)
	}
	return &album, nil
}

// FindAlbumByName looks an album up by its normalized name.
func (c *MongoCatalog) FindAlbumByName(ctx context.Context, name string) (*music.Album, error) {
	var album music.Album
	filter := bson.M{"normalized_name": music.NormalizeAlbumName(name)}
	if err := c.albums.FindOne(ctx, filter).Decode(&album); err != nil {
		return nil, mapError("database.FindAlbumByName", err)
	}
	return &album, nil
}

// FindOrCreateAlbum resolves a raw album name to its canonical record,
// creating it if absent. The upsert races against the unique index on
// normalized_name, so two concurrent calls for the same name converge on
// one document.
func (c *MongoCatalog) FindOrCreateAlbum(ctx context.Context, name string) (*music.Album, error) {
	candidate := music.NewAlbum(name)
	if err := candidate.Validate(); err != nil {
		return nil, err
	}

	filter := bson.M{"normalized_name": candidate.NormalizedName}
	update := bson.M{"$setOnInsert": candidate}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var album music.Album
	err := c.albums.FindOneAndUpdate(ctx, filter, update, opts).Decode(&album)
	if mongo.IsDuplicateKeyError(err) {
		// Lost the upsert race; the winner's document is now in place.
		return c.FindAlbumByName(ctx, name)
	}
	if err != nil {
		return nil, mapError("database.FindOrCreateAlbum", err)
	}
	return &album, nil
}

// UpdateAlbumArt records the object-store key of the album's artwork.
func (c *MongoCatalog) UpdateAlbumArt(ctx context.Context, albumID, artKey string) error {
	update := bson.M{"$set": bson.M{"art_key": artKey, "modified_date": time.Now()}}
	res, err := c.albums.UpdateByID(ctx, albumID, update)
	if err != nil {
		return mapError("database.UpdateAlbumArt", err)
	}
	if res.MatchedCount == 0 {
		return music.Errorf(music.KindNotFound, "database.UpdateAlbumArt", "album not found: %s", albumID)
	}
	return nil
}

// AppendTrackToAlbum adds a track ID to the album's track list. Appending
// a track that is already listed is a no-op.
func (c *MongoCatalog) AppendTrackToAlbum(ctx context.Context, albumID, trackID string) error {
	update := bson.M{
		"$addToSet": bson.M{"track_ids": trackID},
		"$set":      bson.M{"modified_date": time.Now()},
	}
	res, err := c.albums.UpdateByID(ctx, albumID, update)
	if err != nil {
		return mapError("database.AppendTrackToAlbum", err)
	}
	if res.MatchedCount == 0 {
		return music.Errorf(music.KindNotFound, "database.AppendTrackToAlbum", "album not found: %s", albumID)
	}
	return nil
}

// DetachTrackFromAlbum removes a track ID from the album's track list.
// Detaching an absent track is a no-op.
func (c *MongoCatalog) DetachTrackFromAlbum(ctx context.Context, albumID, trackID string) error {
	update := bson.M{
		"$pull": bson.M{"track_ids": trackID},
		"$set":  bson.M{"modified_date": time.Now()},
	}
	res, err := c.albums.UpdateByID(ctx, albumID, update)
	if err != nil {
		return mapError("database.DetachTrackFromAlbum", err)
	}
	if res.MatchedCount == 0 {
		return music.Errorf(music.KindNotFound, "database.DetachTrackFromAlbum", "album not found: %s", albumID)
	}
	return nil
}

// DeleteAlbum removes an album. Deleting an album that still lists tracks
// would orphan them, so it is rejected.
func (c *MongoCatalog) DeleteAlbum(ctx context.Context, id string) error {
	album, err := c.GetAlbum(ctx, id)
	if err != nil {
		return err
	}
	if len(album.TrackIDs) > 0 {
		return music.Errorf(music.KindConsistency, "database.DeleteAlbum",
			"album %q still has %d tracks", album.Name, len(album.TrackIDs))
	}
	res, err := c.albums.DeleteOne(ctx, bson.M{"_id": id, "track_ids": bson.M{"$size": 0}})
	if err != nil {
		return mapError("database.DeleteAlbum", err)
	}
	if res.DeletedCount == 0 {
		// A track was appended between the read and the delete.
		return music.Errorf(music.KindConsistency, "database.DeleteAlbum",
			"album %q gained tracks during delete", album.Name)
	}
	return nil
}

// SearchAlbums finds albums whose name contains the query, case-insensitive.
func (c *MongoCatalog) SearchAlbums(ctx context.Context, query string) ([]*music.Album, error) {
	filter := substringFilter(query, "name")
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	cursor, err := c.albums.Find(ctx, filter, opts)
	if err != nil {
		return nil, mapError("database.SearchAlbums", err)
	}
	return decodeAlbums(ctx, cursor)
}

// GetAlbums retrieves all albums sorted by name.
func (c *MongoCatalog) GetAlbums(ctx context.Context) ([]*music.Album, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	cursor, err := c.albums.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, mapError("database.GetAlbums", err)
	}
	return decodeAlbums(ctx, cursor)
}

func decodeAlbums(ctx context.Context, cursor *mongo.Cursor) ([]*music.Album, error) {
	defer cursor.Close(ctx)
	albums := []*music.Album{}
	if err := cursor.All(ctx, &albums); err != nil {
		return nil, mapError("database.decodeAlbums", err)
	}
	return albums, nil
}

// CreateTrack inserts a new track after validating it and checking that
// the referenced album exists. A track whose album is missing would be
// unreachable from any listing.
func (c *MongoCatalog) CreateTrack(ctx context.Context, track *music.Track) error {
	if err := track.Validate(); err != nil {
		return err
	}
	count, err := c.albums.CountDocuments(ctx, bson.M{"_id": track.AlbumID})
	if err != nil {
		return mapError("database.CreateTrack", err)
	}
	if count == 0 {
		return music.Errorf(music.KindConsistency, "database.CreateTrack",
			"track %q references missing album %s", track.Title, track.AlbumID)
	}
	if _, err := c.tracks.InsertOne(ctx, track); err != nil {
		return mapError("database.CreateTrack", err)
	}
	return nil
}

// GetTrack retrieves a track by its ID.
func (c *MongoCatalog) GetTrack(ctx context.Context, id string) (*music.Track, error) {
	var track music.Track
	if err := c.tracks.FindOne(ctx, bson.M{"_id": id}).Decode(&track); err != nil {
		return nil, mapError("database.GetTrack", err)
	}
	return &track, nil
}

// UpdateTrack applies a partial metadata update. Only the fields present
// in the update are touched.
func (c *MongoCatalog) UpdateTrack(ctx context.Context, id string, update *music.TrackUpdate) error {
	if err := update.Validate(); err != nil {
		return err
	}
	set := bson.M{"modified_date": time.Now()}
	if update.Title != nil {
		set["title"] = *update.Title
	}
	if update.Artist != nil {
		set["artist"] = *update.Artist
	}
	if update.Writers != nil {
		set["writers"] = *update.Writers
	}
	if update.Publishers != nil {
		set["publishers"] = *update.Publishers
	}
	if update.Genres != nil {
		set["genres"] = *update.Genres
	}
	if update.Instruments != nil {
		set["instruments"] = *update.Instruments
	}
	if update.Moods != nil {
		set["moods"] = *update.Moods
	}
	if update.Comments != nil {
		set["comments"] = *update.Comments
	}
	res, err := c.tracks.UpdateByID(ctx, id, bson.M{"$set": set})
	if err != nil {
		return mapError("database.UpdateTrack", err)
	}
	if res.MatchedCount == 0 {
		return music.Errorf(music.KindNotFound, "database.UpdateTrack", "track not found: %s", id)
	}
	return nil
}

// UpdateTrackPaths swaps a track's tier map and technical fields in one
// write, used when its audio is replaced. Identity and editable metadata
// are untouched.
func (c *MongoCatalog) UpdateTrackPaths(ctx context.Context, id string, paths map[string]string, duration float64, bitrate, sampleRate int, format string, partial bool) error {
	if len(paths) == 0 || paths[music.TierOriginal] == "" {
		return music.Errorf(music.KindValidation, "database.UpdateTrackPaths",
			"paths must include an %q key", music.TierOriginal)
	}
	if duration <= 0 {
		return music.Errorf(music.KindValidation, "database.UpdateTrackPaths",
			"duration must be positive, got %v", duration)
	}
	set := bson.M{
		"paths":         paths,
		"duration":      duration,
		"bitrate":       bitrate,
		"sample_rate":   sampleRate,
		"format":        format,
		"partial":       partial,
		"modified_date": time.Now(),
	}
	res, err := c.tracks.UpdateByID(ctx, id, bson.M{"$set": set})
	if err != nil {
		return mapError("database.UpdateTrackPaths", err)
	}
	if res.MatchedCount == 0 {
		return music.Errorf(music.KindNotFound, "database.UpdateTrackPaths", "track not found: %s", id)
	}
	return nil
}

// DeleteTrack removes a track record. A second delete of the same ID
// reports not found. Album pairing is maintained separately through
// DetachTrackFromAlbum.
func (c *MongoCatalog) DeleteTrack(ctx context.Context, id string) error {
	res, err := c.tracks.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return mapError("database.DeleteTrack", err)
	}
	if res.DeletedCount == 0 {
		return music.Errorf(music.KindNotFound, "database.DeleteTrack", "track not found: %s", id)
	}
	return nil
}

// SearchTracks finds tracks whose title, album name, or genres contain the
// query, case-insensitive.
func (c *MongoCatalog) SearchTracks(ctx context.Context, query string) ([]*music.Track, error) {
	filter := substringFilter(query, "title", "album_name", "genres")
	opts := options.Find().SetSort(bson.D{{Key: "title", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := c.tracks.Find(ctx, filter, opts)
	if err != nil {
		return nil, mapError("database.SearchTracks", err)
	}
	return decodeTracks(ctx, cursor)
}

// TracksByAlbum retrieves all tracks of an album sorted by title.
func (c *MongoCatalog) TracksByAlbum(ctx context.Context, albumID string) ([]*music.Track, error) {
	opts := options.Find().SetSort(bson.D{{Key: "title", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := c.tracks.Find(ctx, bson.M{"album_id": albumID}, opts)
	if err != nil {
		return nil, mapError("database.TracksByAlbum", err)
	}
	return decodeTracks(ctx, cursor)
}

// listSortFields maps API sort names to document fields.
var listSortFields = map[string]string{
	"title":    "title",
	"album":    "album_name",
	"duration": "duration",
	"genre":    "genres",
	"added":    "added_date",
}

// ListTracks returns one page of the sorted track listing plus the total
// count. The _id tie-break keeps the order stable across pages when the
// sort field carries duplicates.
func (c *MongoCatalog) ListTracks(ctx context.Context, sortField string, dir music.SortDirection, limit, skip int) (*music.TrackPage, error) {
	field, ok := listSortFields[sortField]
	if !ok {
		return nil, music.Errorf(music.KindValidation, "database.ListTracks", "unknown sort field %q", sortField)
	}
	order := 1
	if dir == music.SortDesc {
		order = -1
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if skip < 0 {
		skip = 0
	}

	total, err := c.tracks.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, mapError("database.ListTracks", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: field, Value: order}, {Key: "_id", Value: 1}}).
		SetSkip(int64(skip)).
		SetLimit(int64(limit))
	cursor, err := c.tracks.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, mapError("database.ListTracks", err)
	}
	tracks, err := decodeTracks(ctx, cursor)
	if err != nil {
		return nil, err
	}
	return &music.TrackPage{Tracks: tracks, TotalCount: int(total)}, nil
}

// GetTracksCount returns the total number of tracks in the catalog.
func (c *MongoCatalog) GetTracksCount(ctx context.Context) (int, error) {
	count, err := c.tracks.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, mapError("database.GetTracksCount", err)
	}
	return int(count), nil
}

func decodeTracks(ctx context.Context, cursor *mongo.Cursor) ([]*music.Track, error) {
	defer cursor.Close(ctx)
	tracks := []*music.Track{}
	if err := cursor.All(ctx, &tracks); err != nil {
		return nil, mapError("database.decodeTracks", err)
	}
	return tracks, nil
}

var _ music.Catalog = (*MongoCatalog)(nil)
