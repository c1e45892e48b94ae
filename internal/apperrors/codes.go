package apperrors

// Code is a machine-readable error code.
type Code string

const (
	CodeUnknown Code = "UNKNOWN"

	// Invalid input
	CodeInvalidClaim        Code = "INVALID_CLAIM"
	CodeInvalidVerdict      Code = "INVALID_VERDICT"
	CodeInvalidEvidence     Code = "INVALID_EVIDENCE"
	CodeInvalidProfile      Code = "INVALID_PROFILE"
	CodeInvalidFact         Code = "INVALID_FACT"
	CodeInvalidBallot       Code = "INVALID_BALLOT"
	CodeNoDivergence        Code = "NO_DIVERGENCE"
	CodeInvalidSubscription Code = "INVALID_SUBSCRIPTION"

	// Not found
	CodeClaimNotFound      Code = "CLAIM_NOT_FOUND"
	CodeReviewerNotFound   Code = "REVIEWER_NOT_FOUND"
	CodeFactNotFound       Code = "FACT_NOT_FOUND"
	CodeEscalationNotFound Code = "ESCALATION_NOT_FOUND"

	// Unauthorized
	CodeNotAssigned      Code = "NOT_ASSIGNED"
	CodeWrongPhase       Code = "WRONG_PHASE"
	CodeNotSenior        Code = "NOT_ASSIGNED_SENIOR"
	CodeNotCouncilMember Code = "NOT_COUNCIL_MEMBER"
	CodeInsufficientRank Code = "INSUFFICIENT_RANK"

	// Conflict
	CodeAlreadyRegistered Code = "ALREADY_REGISTERED"
	CodeDuplicateVersion  Code = "DUPLICATE_VERSION"
	CodeAlreadySubmitted  Code = "ALREADY_SUBMITTED"
	CodeAlreadyVoted      Code = "ALREADY_VOTED"
	CodeInvalidTransition Code = "INVALID_TRANSITION"
	CodeEscalationOpen    Code = "ESCALATION_OPEN"
	CodeStaleClaim        Code = "STALE_CLAIM"

	// Unavailable
	CodeNoEligibleSenior     Code = "NO_ELIGIBLE_SENIOR"
	CodeCouncilUnavailable   Code = "COUNCIL_UNAVAILABLE"
	CodeNoEligibleReviewer   Code = "NO_ELIGIBLE_REVIEWER"
	CodeRetrievalUnavailable Code = "RETRIEVAL_UNAVAILABLE"
)

var codeKinds = map[Code]Kind{
	CodeInvalidClaim:        KindInvalidInput,
	CodeInvalidVerdict:      KindInvalidInput,
	CodeInvalidEvidence:     KindInvalidInput,
	CodeInvalidProfile:      KindInvalidInput,
	CodeInvalidFact:         KindInvalidInput,
	CodeInvalidBallot:       KindInvalidInput,
	CodeNoDivergence:        KindInvalidInput,
	CodeInvalidSubscription: KindInvalidInput,

	CodeClaimNotFound:      KindNotFound,
	CodeReviewerNotFound:   KindNotFound,
	CodeFactNotFound:       KindNotFound,
	CodeEscalationNotFound: KindNotFound,

	CodeNotAssigned:      KindUnauthorized,
	CodeWrongPhase:       KindUnauthorized,
	CodeNotSenior:        KindUnauthorized,
	CodeNotCouncilMember: KindUnauthorized,
	CodeInsufficientRank: KindUnauthorized,

	CodeAlreadyRegistered: KindConflict,
	CodeDuplicateVersion:  KindConflict,
	CodeAlreadySubmitted:  KindConflict,
	CodeAlreadyVoted:      KindConflict,
	CodeInvalidTransition: KindConflict,
	CodeEscalationOpen:    KindConflict,
	CodeStaleClaim:        KindConflict,

	CodeNoEligibleSenior:     KindUnavailable,
	CodeCouncilUnavailable:   KindUnavailable,
	CodeNoEligibleReviewer:   KindUnavailable,
	CodeRetrievalUnavailable: KindUnavailable,
}

// Kind returns the class the code belongs to.
func (c Code) Kind() Kind {
	if k, ok := codeKinds[c]; ok {
		return k
	}
	return KindInternal
}
