package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/jessevdk/go-flags"
	"github.com/lib/pq"

	"github.com/lysyi3m/feed-sync/app/database"
	"github.com/lysyi3m/feed-sync/app/realtime"
)

// Development data seeder: fills the content store with fake profiles,
// posts (including replies and reshares), a follow graph and viewer
// interactions, and can publish synthetic change notifications so a
// running feed-sync instance picks them up end to end.

type options struct {
	DBHost     string `long:"db-host" env:"DB_HOST" default:"localhost" description:"Database host"`
	DBPort     string `long:"db-port" env:"DB_PORT" default:"5432" description:"Database port"`
	DBUser     string `long:"db-user" env:"DB_USER" default:"feed_user" description:"Database user"`
	DBPassword string `long:"db-password" env:"DB_PASSWORD" default:"feed_password" description:"Database password" required:"true"`
	DBName     string `long:"db-name" env:"DB_NAME" default:"feed_sync" description:"Database name"`

	Profiles int `long:"profiles" default:"25" description:"Number of profiles to create"`
	Posts    int `long:"posts" default:"300" description:"Number of posts to create"`

	PublishEvents   int    `long:"publish-events" default:"0" description:"Publish change notifications for the N newest posts after seeding"`
	RedisAddr       string `long:"redis-addr" env:"REDIS_ADDR" default:"localhost:6379" description:"Redis address for publishing events"`
	RedisDB         int    `long:"redis-db" env:"REDIS_DB" default:"0" description:"Redis database number"`
	RealtimeChannel string `long:"realtime-channel" env:"REALTIME_CHANNEL" default:"feedsync:posts" description:"Redis pub/sub channel for post-created events"`

	Seed int64 `long:"seed" default:"0" description:"Random seed (0 = time-based)"`
}

type seededPost struct {
	id        string
	authorID  string
	isReply   bool
	createdAt time.Time
}

func main() {
	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			return
		}
		log.Fatalf("Failed to parse options: %v", err)
	}

	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	gofakeit.Seed(seed)
	rng := rand.New(rand.NewSource(seed))

	db, err := database.NewConnection(opts.DBHost, opts.DBPort, opts.DBUser, opts.DBPassword, opts.DBName)
	if err != nil {
		log.Fatal("Failed to connect to database: ", err)
	}
	defer db.Close()

	if _, _, err := database.RunMigrations(db); err != nil {
		log.Fatal("Failed to run migrations: ", err)
	}

	ctx := context.Background()

	profileIDs, err := seedProfiles(ctx, db, opts.Profiles)
	if err != nil {
		log.Fatal("Failed to seed profiles: ", err)
	}
	log.Printf("Created %d profiles", len(profileIDs))

	followCount, err := seedFollows(ctx, db, rng, profileIDs)
	if err != nil {
		log.Fatal("Failed to seed follows: ", err)
	}
	log.Printf("Created %d follow edges", followCount)

	posts, err := seedPosts(ctx, db, rng, profileIDs, opts.Posts)
	if err != nil {
		log.Fatal("Failed to seed posts: ", err)
	}
	log.Printf("Created %d posts", len(posts))

	interactionCount, err := seedInteractions(ctx, db, rng, profileIDs, posts)
	if err != nil {
		log.Fatal("Failed to seed interactions: ", err)
	}
	log.Printf("Created %d interactions", interactionCount)

	if opts.PublishEvents > 0 {
		if err := publishEvents(ctx, opts, posts); err != nil {
			log.Fatal("Failed to publish events: ", err)
		}
		log.Printf("Published %d change notifications", opts.PublishEvents)
	}

	log.Println("Seeding complete")
}

func seedProfiles(ctx context.Context, db *database.DB, count int) ([]string, error) {
	ids := make([]string, 0, count)

	for i := 0; i < count; i++ {
		id := uuid.NewString()
		_, err := db.ExecContext(ctx, `
			INSERT INTO profiles (id, handle, display_name, avatar_url, verified, followers_count, following_count, joined_at, country)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`,
			id,
			fmt.Sprintf("%s%d", gofakeit.Username(), i),
			gofakeit.Name(),
			gofakeit.ImageURL(128, 128),
			gofakeit.Bool(),
			gofakeit.Number(0, 50000),
			gofakeit.Number(0, 2000),
			gofakeit.DateRange(time.Now().AddDate(-8, 0, 0), time.Now().AddDate(0, -1, 0)),
			gofakeit.CountryAbr(),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to insert profile: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, nil
}

func seedFollows(ctx context.Context, db *database.DB, rng *rand.Rand, profileIDs []string) (int, error) {
	count := 0

	for _, follower := range profileIDs {
		for _, following := range profileIDs {
			if follower == following || rng.Float64() > 0.3 {
				continue
			}
			_, err := db.ExecContext(ctx, `
				INSERT INTO follows (follower_id, following_id)
				VALUES ($1, $2)
				ON CONFLICT DO NOTHING
			`, follower, following)
			if err != nil {
				return 0, fmt.Errorf("failed to insert follow: %w", err)
			}
			count++
		}
	}

	return count, nil
}

func seedPosts(ctx context.Context, db *database.DB, rng *rand.Rand, profileIDs []string, count int) ([]seededPost, error) {
	posts := make([]seededPost, 0, count)
	var originals []seededPost

	for i := 0; i < count; i++ {
		post := seededPost{
			id:        uuid.NewString(),
			authorID:  profileIDs[rng.Intn(len(profileIDs))],
			createdAt: gofakeit.DateRange(time.Now().Add(-48*time.Hour), time.Now()),
		}

		var retweetOfID interface{}
		content := gofakeit.Sentence(gofakeit.Number(5, 25))
		hashtags := fakeTags(rng, "#")
		mentions := fakeTags(rng, "@")

		switch {
		case rng.Float64() < 0.1 && len(originals) > 0:
			// Reshare of an earlier original; content lives on the original
			original := originals[rng.Intn(len(originals))]
			retweetOfID = original.id
			content = ""
		case rng.Float64() < 0.15:
			post.isReply = true
		}

		_, err := db.ExecContext(ctx, `
			INSERT INTO posts (id, author_id, content, is_reply, retweet_of_id, media, hashtags, mentions, tags,
				likes_count, retweets_count, replies_count, views_count, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		`,
			post.id,
			post.authorID,
			content,
			post.isReply,
			retweetOfID,
			pq.Array(fakeMedia(rng)),
			pq.Array(hashtags),
			pq.Array(mentions),
			pq.Array([]string{gofakeit.HackerNoun()}),
			gofakeit.Number(0, 500),
			gofakeit.Number(0, 120),
			gofakeit.Number(0, 80),
			gofakeit.Number(0, 100000),
			post.createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to insert post: %w", err)
		}

		posts = append(posts, post)
		if retweetOfID == nil && !post.isReply {
			originals = append(originals, post)
		}
	}

	return posts, nil
}

func seedInteractions(ctx context.Context, db *database.DB, rng *rand.Rand, profileIDs []string, posts []seededPost) (int, error) {
	tables := []string{"likes", "retweets", "bookmarks"}
	ratios := map[string]float64{"likes": 0.08, "retweets": 0.03, "bookmarks": 0.02}
	count := 0

	for _, userID := range profileIDs {
		for _, post := range posts {
			for _, table := range tables {
				if rng.Float64() > ratios[table] {
					continue
				}
				query := fmt.Sprintf(`
					INSERT INTO %s (user_id, post_id)
					VALUES ($1, $2)
					ON CONFLICT DO NOTHING
				`, table)
				if _, err := db.ExecContext(ctx, query, userID, post.id); err != nil {
					return 0, fmt.Errorf("failed to insert %s row: %w", table, err)
				}
				count++
			}
		}
	}

	return count, nil
}

func publishEvents(ctx context.Context, opts options, posts []seededPost) error {
	hub, err := realtime.NewHub(opts.RedisAddr, opts.RedisDB, opts.RealtimeChannel)
	if err != nil {
		return err
	}
	defer hub.Close()

	published := 0
	for i := len(posts) - 1; i >= 0 && published < opts.PublishEvents; i-- {
		post := posts[i]
		if post.isReply {
			continue
		}
		event := realtime.Event{
			NewItemID: post.id,
			AuthorID:  post.authorID,
			IsReply:   false,
		}
		if err := hub.Publish(ctx, event); err != nil {
			return err
		}
		published++
	}

	return nil
}

func fakeTags(rng *rand.Rand, prefix string) []string {
	n := rng.Intn(3)
	tags := make([]string, 0, n)
	for i := 0; i < n; i++ {
		tags = append(tags, prefix+gofakeit.BuzzWord())
	}
	return tags
}

func fakeMedia(rng *rand.Rand) []string {
	n := rng.Intn(3)
	media := make([]string, 0, n)
	for i := 0; i < n; i++ {
		media = append(media, gofakeit.ImageURL(800, 600))
	}
	return media
}
