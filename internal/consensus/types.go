package consensus

import "sealevel/backend/internal/consensus/contract"

type Provider = contract.Provider

type ProviderConfig = contract.ProviderConfig

type ProviderResponse = contract.ProviderResponse

type ProviderHealth = contract.ProviderHealth

type ProviderFailure = contract.ProviderFailure

type QueryOptions = contract.QueryOptions

type ConsensusRequest = contract.ConsensusRequest

type ConsensusResult = contract.ConsensusResult

type ConsensusConfig = contract.ConsensusConfig

type RetryConfig = contract.RetryConfig

type ResultMetadata = contract.ResultMetadata
