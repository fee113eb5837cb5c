// Package install provisions a runnable version: it resolves the vanilla
// descriptor, gathers and fetches every file, runs the requested loaders
// and writes the merged descriptor to versions/<id>/<id>.json.
//
// Files are fetched in two batches. Libraries, game jar and loader files
// share a narrow batch; asset objects use a wide one since they are many
// and small. Loaders install in request order and their fragments are
// merged onto the vanilla descriptor in the same order.
package install
