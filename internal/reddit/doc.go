// Package reddit is a small client for the Reddit API endpoints the acquirer
// needs: subreddit listings, top comments, and image downloads. It
// authenticates with the application-only client-credentials grant and caches
// the bearer token until shortly before it expires.
package reddit
