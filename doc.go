/*
Package tabular provides an immutable, composable transformation layer over
tabular record data, backed by a deterministic pseudo-random substrate and a
content-addressed transform cache.

It is built for reproducible data pipelines: seeded operations (shuffling,
sampling, interleaving) produce bit-for-bit identical orderings across runs
and across independent implementations of the same reference generator.

# Core Architecture

tabular is organized around four cooperating pieces:

  - SeedSequence / PCG64 - a deterministic pseudo-random substrate. An
    arbitrary-precision seed is mixed into 128-bit generator state using a
    published hash-mixing algorithm, and the generator reproduces the
    reference stream exactly.
  - Fingerprint - content- and operation-addressed 256-bit digests used to
    name cache entries. Canonicalization uses deterministic CBOR encoding so
    the same logical inputs always hash to the same bytes.
  - TransformCache - a persistent store memoizing transformation outputs,
    keyed by (input fingerprint, transform fingerprint), with age- and
    size-based eviction. The cache is an optimization: corrupt or unreadable
    entries degrade to a miss, never to a failure.
  - Dataset / LazyDataset - the eager and streaming variants of the
    transformation API. Dataset operators are pure: every operation returns
    a new Dataset and leaves the receiver untouched. LazyDataset composes
    transforms over a pull-based source and never evaluates more of its
    input than a consumer actually pulls.

# Basic Usage

Building a dataset and applying transformations:

	ds, err := tabular.NewDataset(records)
	if err != nil {
	    log.Fatalf("failed to build dataset: %v", err)
	}

	shuffled := ds.Shuffle(42)

	adults, err := shuffled.Filter(func(r tabular.Record) (bool, error) {
	    age, _ := r.Get("age")
	    n, _ := age.Int()
	    return n >= 18, nil
	})

Memoizing expensive transforms through a cache:

	cache, err := tabular.OpenTransformCache(".tabular-cache")
	if err != nil {
	    log.Fatalf("failed to open cache: %v", err)
	}

	ds, err := tabular.NewDataset(records, tabular.WithCache(cache))
	// Map and Filter now consult the cache before recomputing.

Streaming over a source without materializing it:

	lazy := tabular.FromSource("events", source).
	    Filter(keep).
	    Take(100)

	for {
	    rec, err := lazy.Next()
	    if err == io.EOF {
	        break
	    }
	    ...
	}

# Determinism

Shuffle(seed) derives generator state from the seed with SeedSequence and
applies a Fisher-Yates pass whose loop order and bounded draws match the
reference algorithm exactly. Two processes shuffling the same records with
the same seed always produce the same permutation. The generator stream is
validated against golden vectors captured from the reference algorithm.

# Cache Layout

The transform cache uses a flat directory under its root:

	<root>/
	└── transforms/
	    ├── manifest.json
	    └── <inputFP>_<transformFP>.cache

The manifest records creation time, size, and a payload checksum per entry
and drives Cleanup's eviction passes.

# Error Handling

Contract violations (out-of-range indices, unknown columns, invalid casts)
fail fast with typed errors. Cache faults are logged and degrade to misses.
Lazy pipelines surface source faults at the offending pull, not at
composition time.
*/
package tabular
