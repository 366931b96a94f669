// Package features derives analysis variables on the enrichment table:
// prior-breach history per organization, post-disclosure event flags such as
// executive turnover and regulatory enforcement, the records-affected log
// transform, and firm size quartiles. Every derivation adds columns without
// touching row identity.
package features
