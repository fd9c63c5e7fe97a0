// Package source loads archive bytes from local files or S3.
package source

import (
	"context"
	"fmt"
	"io/ioutil"
	"os"
	"strings"

	homedir "github.com/mitchellh/go-homedir"
	log "github.com/sirupsen/logrus"
)

const s3Scheme = "s3://"

// ObjectGetter downloads whole S3 objects.
type ObjectGetter interface {
	GetObject(ctx context.Context, bucket, key string, maxSize int64) ([]byte, error)
}

// Loader resolves archive locations to their bytes.
type Loader struct {
	// S3 serves s3:// locations. It may be nil when only local paths are used.
	S3 ObjectGetter
	// MaxSize refuses archives larger than this many bytes; zero means no limit.
	MaxSize int64
}

// Location is a parsed archive location.
type Location struct {
	Bucket string
	Key    string
	Path   string
}

// IsS3 reports whether the location names an S3 object.
func (l Location) IsS3() bool { return l.Bucket != "" }

func (l Location) String() string {
	if l.IsS3() {
		return s3Scheme + l.Bucket + "/" + l.Key
	}
	return l.Path
}

// ParseLocation splits "s3://bucket/key" into bucket and key; anything else
// is treated as a local path with a leading "~" expanded.
func ParseLocation(loc string) (Location, error) {
	if strings.HasPrefix(loc, s3Scheme) {
		rest := strings.TrimPrefix(loc, s3Scheme)
		i := strings.IndexByte(rest, '/')
		if i <= 0 || i == len(rest)-1 {
			return Location{}, fmt.Errorf("invalid S3 location %q, want s3://bucket/key", loc)
		}
		return Location{Bucket: rest[:i], Key: rest[i+1:]}, nil
	}
	if loc == "" {
		return Location{}, fmt.Errorf("empty archive location")
	}
	path, err := homedir.Expand(loc)
	if err != nil {
		return Location{}, err
	}
	return Location{Path: path}, nil
}

// Load returns the full contents of the archive at loc.
func (l *Loader) Load(ctx context.Context, loc string) ([]byte, error) {
	parsed, err := ParseLocation(loc)
	if err != nil {
		return nil, err
	}
	log.WithField("location", parsed.String()).Debug("loading archive")
	if parsed.IsS3() {
		if l.S3 == nil {
			return nil, fmt.Errorf("no S3 client configured for %s", parsed)
		}
		return l.S3.GetObject(ctx, parsed.Bucket, parsed.Key, l.MaxSize)
	}
	return l.loadFile(parsed.Path)
}

func (l *Loader) loadFile(path string) ([]byte, error) {
	if l.MaxSize > 0 {
		fi, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if fi.Size() > l.MaxSize {
			return nil, fmt.Errorf("%s is %d bytes, limit is %d", path, fi.Size(), l.MaxSize)
		}
	}
	return ioutil.ReadFile(path)
}
