package cmd

import (
	"context"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/alec-rabold/obbyspy/pkg/aws"
	"github.com/alec-rabold/obbyspy/pkg/obbyfile"
	"github.com/alec-rabold/obbyspy/pkg/source"
)

// openArchive loads the archive at location and parses its entry table.
func openArchive(ctx context.Context, location string) (*obbyfile.Reader, error) {
	loader := &source.Loader{MaxSize: viper.GetInt64("max-archive-size")}
	if strings.HasPrefix(location, "s3://") {
		loader.S3 = aws.NewClient(viper.GetString("aws-region"))
	}
	buf, err := loader.Load(ctx, location)
	if err != nil {
		log.Errorf("error loading archive (location: %s), err: %v", location, err)
		return nil, err
	}
	r, err := obbyfile.Open(buf, obbyfile.WithMaxEntrySize(viper.GetInt64("max-entry-size")))
	if err != nil {
		log.Errorf("error reading archive (location: %s), err: %v", location, err)
		return nil, err
	}
	log.WithFields(log.Fields{
		"location": location,
		"entries":  r.Index().Len(),
		"size":     r.Size(),
	}).Debug("opened archive")
	return r, nil
}
