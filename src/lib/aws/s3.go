package aws

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

func GetS3Client() *s3.Client {
	cfg, err := config.LoadDefaultConfig(context.TODO())
	if err != nil {
		log.Printf("Could not load default config: %s\n", err.Error())
		return nil
	}
	svc := s3.NewFromConfig(cfg)
	return svc
}

// S3PresignPhotoUpload returns a presigned PUT URL the client uploads a car
// photo to, plus the object key it will live under.
func S3PresignPhotoUpload(carId uint, filename string) (uploadURL string, key string, err error) {
	photosBucket := os.Getenv("S3_PHOTOS_BUCKET")
	key = fmt.Sprintf("cars/%d/%s", carId, filename)
	client := GetS3Client()
	pre := s3.NewPresignClient(client)
	r, err := pre.PresignPutObject(context.TODO(), &s3.PutObjectInput{
		Bucket:      aws.String(photosBucket),
		Key:         aws.String(key),
		ContentType: aws.String("image/jpeg"),
	}, func(po *s3.PresignOptions) {
		po.Expires = time.Duration(3600 * time.Second)
	})
	if err != nil {
		log.Printf("Could not generate presigned upload URL for object [%s]: %s\n", key, err.Error())
		return "", "", err
	}
	return r.URL, key, nil
}

// S3PresignPhotoURL returns a presigned GET URL for an uploaded car photo.
func S3PresignPhotoURL(key string) (*string, error) {
	photosBucket := os.Getenv("S3_PHOTOS_BUCKET")
	client := GetS3Client()
	pre := s3.NewPresignClient(client)
	r, err := pre.PresignGetObject(context.TODO(), &s3.GetObjectInput{
		Bucket: aws.String(photosBucket),
		Key:    aws.String(key),
	}, func(po *s3.PresignOptions) {
		po.Expires = time.Duration(3600 * time.Second)
	})
	if err != nil {
		log.Printf("Could not generate presigned URL for object [%s]: %s\n", key, err.Error())
		return nil, err
	}
	return &r.URL, nil
}
