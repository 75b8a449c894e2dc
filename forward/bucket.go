package forward

import (
	"sort"

	"github.com/msg555/beakfs/bpath"
	"github.com/msg555/beakfs/tarfile"
)

// finalizePrefix strips sd's own path from every attached entry and
// sub-storage-directory entry's TarPath, turning scan-root-relative
// names into storage-directory-relative ones.
func finalizePrefix(sd *StorageDir) {
	prefix := sd.Entry.TarPath
	n := len(prefix)
	if n > 0 {
		n++ // also consume the separating '/'
	}
	for _, e := range sd.Attached {
		if n > 0 {
			e.RemovePrefix(n)
		}
	}
	for _, sub := range sd.SubDirs {
		if n > 0 {
			sub.Entry.RemovePrefix(n)
		}
	}
}

func tarFriendlySort(entries []*tarfile.Entry) {
	sort.Slice(entries, func(i, j int) bool {
		return bpath.TarFriendly(entries[i].Path, entries[j].Path)
	})
}

func smallestPow2(numTars func(n int) bool) int {
	n := 1
	for !numTars(n) {
		n *= 2
	}
	return n
}

// BucketResult holds every tar.File produced for one storage directory,
// excluding the manifest index itself.
type BucketResult struct {
	DirTar   *tarfile.File // type 'z', nil if there's nothing to materialize
	SmallMed []*tarfile.File
	Large    []*tarfile.File
}

// PartitionBucket runs the small/medium/large classification and
// power-of-two tar-count sizing, finalizing tarpaths first. The 'z'
// directory tar carries every attached directory plus each
// sub-storage-directory's own entry, so restoring it recreates the full
// directory skeleton beneath sd.
func PartitionBucket(sd *StorageDir, cfg Config) *BucketResult {
	finalizePrefix(sd)

	target := cfg.effectiveTargetSize()
	smallSize := target / 100
	mediumSize := target

	var dirs, small, medium, large []*tarfile.Entry
	var smallTotal, mediumTotal int64

	for _, sub := range sd.SubDirs {
		dirs = append(dirs, sub.Entry)
	}
	for _, e := range sd.Attached {
		switch {
		case e.Kind == tarfile.KindDirectory:
			dirs = append(dirs, e)
		case e.Size() < smallSize:
			small = append(small, e)
			smallTotal += e.Size()
		case e.Size() < mediumSize:
			medium = append(medium, e)
			mediumTotal += e.Size()
		default:
			large = append(large, e)
		}
	}

	if smallTotal <= target || mediumTotal <= target {
		small = append(small, medium...)
		smallTotal += mediumTotal
		medium = nil
		mediumTotal = 0
	}

	result := &BucketResult{}

	if len(dirs) > 0 {
		tarFriendlySort(dirs)
		result.DirTar = tarfile.NewFile(tarfile.DirManifestData, 0, dirs)
	}

	if len(small) > 0 {
		result.SmallMed = append(result.SmallMed, layoutHashedBucket(tarfile.SmallBucket, small, smallTotal, target)...)
	}
	if len(medium) > 0 {
		result.SmallMed = append(result.SmallMed, layoutHashedBucket(tarfile.MediumBucket, medium, mediumTotal, target)...)
	}
	if len(large) > 0 {
		result.Large = layoutLargeBucket(large)
	}

	for _, f := range result.SmallMed {
		f.ComputeDataHash()
	}
	for _, f := range result.Large {
		f.ComputeDataHash()
	}
	if result.DirTar != nil {
		result.DirTar.ComputeDataHash()
	}

	return result
}

// layoutHashedBucket partitions entries into the smallest power-of-2
// count of tars such that numTars * target >= total, placing each entry
// into bucket (tarpathHash mod numTars).
func layoutHashedBucket(kind tarfile.BucketKind, entries []*tarfile.Entry, total, target int64) []*tarfile.File {
	numTars := smallestPow2(func(n int) bool {
		return int64(n)*target >= total
	})

	buckets := make([][]*tarfile.Entry, numTars)
	for _, e := range entries {
		idx := int(e.TarpathHash()) % numTars
		buckets[idx] = append(buckets[idx], e)
	}

	var files []*tarfile.File
	for i, bucket := range buckets {
		if len(bucket) == 0 {
			continue
		}
		tarFriendlySort(bucket)
		files = append(files, tarfile.NewFile(kind, uint32(i), bucket))
	}
	return files
}

// layoutLargeBucket groups large entries by their tarpath hash: hash
// collisions coexist in the same tar, otherwise each entry owns its own.
func layoutLargeBucket(entries []*tarfile.Entry) []*tarfile.File {
	byHash := map[uint32][]*tarfile.Entry{}
	for _, e := range entries {
		h := e.TarpathHash()
		byHash[h] = append(byHash[h], e)
	}

	hashes := make([]uint32, 0, len(byHash))
	for h := range byHash {
		hashes = append(hashes, h)
	}
	sort.Slice(hashes, func(i, j int) bool { return hashes[i] < hashes[j] })

	var files []*tarfile.File
	for _, h := range hashes {
		group := byHash[h]
		tarFriendlySort(group)
		files = append(files, tarfile.NewFile(tarfile.LargeSingle, h, group))
	}
	return files
}
