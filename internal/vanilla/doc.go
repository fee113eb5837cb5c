// Package vanilla turns a vanilla version descriptor into fetch items.
//
// It also owns the on-disk layout of an installation root and game-version
// comparisons shared by the loader packages.
//
// # Layout
//
//	{root}/versions/{id}/{id}.json
//	{root}/versions/{id}/{id}.jar
//	{root}/libraries/{group path}/{artifact}/{version}/{file}
//	{root}/assets/indexes/{index id}.json
//	{root}/assets/objects/{hash[0:2]}/{hash}
//	{root}/mods/
package vanilla
