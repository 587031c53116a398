package firebase

import (
	"context"
	"fmt"
	"os"

	"cloud.google.com/go/storage"
	firebase "firebase.google.com/go/v4"
	"github.com/golang/glog"
	"google.golang.org/api/option"
)

// App holds the initialized Firebase app and its default storage bucket
type App struct {
	FirebaseApp *firebase.App
	Bucket      *storage.BucketHandle
}

// InitFirebase initializes the Firebase application and storage bucket
func InitFirebase(ctx context.Context, credentialsPath, bucket string) (*App, error) {
	if credentialsPath == "" {
		return nil, fmt.Errorf("Firebase credentials path not provided")
	}
	if bucket == "" {
		return nil, fmt.Errorf("Firebase storage bucket not provided")
	}

	if _, err := os.Stat(credentialsPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("Firebase credentials file not found at %s", credentialsPath)
	}

	opt := option.WithCredentialsFile(credentialsPath)

	firebaseApp, err := firebase.NewApp(ctx, &firebase.Config{StorageBucket: bucket}, opt)
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}

	storageClient, err := firebaseApp.Storage(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting firebase storage client: %w", err)
	}

	defaultBucket, err := storageClient.DefaultBucket()
	if err != nil {
		return nil, fmt.Errorf("error opening storage bucket: %w", err)
	}

	glog.Infof("Firebase app and storage bucket %q initialized successfully!", bucket)
	return &App{FirebaseApp: firebaseApp, Bucket: defaultBucket}, nil
}
