package dblayer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
)

// Profile photos are capped well below the Firestore document limit since
// clients upload them over campus wifi.
const maxPhotoBytes = 100 * 1024

var jpegMagic = []byte{0xff, 0xd8, 0xff}

// UploadProfilePhoto stores a JPEG profile photo in the photo bucket and
// returns the public URL to record on the profile. Owner only.
func (db *DB) UploadProfilePhoto(ctx context.Context, callerID, userID string, photo []byte) (string, error) {
	if err := requireCaller(callerID); err != nil {
		return "", err
	}
	if userID != callerID {
		return "", fmt.Errorf("%w: can only upload your own photo", ErrUnauthorized)
	}
	if db.photoBucket == nil {
		return "", fmt.Errorf("%w: photo storage is not configured", ErrInvalidArgument)
	}
	if len(photo) == 0 || len(photo) > maxPhotoBytes {
		return "", fmt.Errorf("%w: photo must be between 1 and %d bytes", ErrInvalidArgument, maxPhotoBytes)
	}
	if !bytes.HasPrefix(photo, jpegMagic) {
		return "", fmt.Errorf("%w: photo must be a JPEG", ErrInvalidArgument)
	}

	objectName := "profile-photos/" + userID + ".jpg"
	writer := db.photoBucket.Object(objectName).NewWriter(ctx)
	writer.ContentType = "image/jpeg"
	writer.CacheControl = "public, max-age=3600"

	if _, err := io.Copy(writer, bytes.NewReader(photo)); err != nil {
		writer.Close()
		return "", fmt.Errorf("while writing photo object %s: %w", objectName, err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("while finalizing photo object %s: %w", objectName, err)
	}

	return "https://storage.googleapis.com/" + url.PathEscape(db.photoBucketName) + "/" + objectName, nil
}
