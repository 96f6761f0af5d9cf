package ethereum

// certificationABI describes the Certification contract. Every
// getCertificate output is a string; the timestamp is rendered by the
// contract as decimal unix seconds.
const certificationABI = `[
  {
    "type": "function",
    "name": "isVerified",
    "stateMutability": "view",
    "inputs": [{"name": "certificateId", "type": "string"}],
    "outputs": [{"name": "", "type": "bool"}]
  },
  {
    "type": "function",
    "name": "getCertificate",
    "stateMutability": "view",
    "inputs": [{"name": "certificateId", "type": "string"}],
    "outputs": [
      {"name": "uid", "type": "string"},
      {"name": "candidateName", "type": "string"},
      {"name": "courseName", "type": "string"},
      {"name": "orgName", "type": "string"},
      {"name": "ipfsHash", "type": "string"},
      {"name": "timestamp", "type": "string"}
    ]
  },
  {
    "type": "function",
    "name": "generateCertificate",
    "stateMutability": "nonpayable",
    "inputs": [
      {"name": "certificateId", "type": "string"},
      {"name": "uid", "type": "string"},
      {"name": "candidateName", "type": "string"},
      {"name": "courseName", "type": "string"},
      {"name": "orgName", "type": "string"},
      {"name": "ipfsHash", "type": "string"}
    ],
    "outputs": []
  }
]`

const (
	methodIsVerified          = "isVerified"
	methodGetCertificate      = "getCertificate"
	methodGenerateCertificate = "generateCertificate"
)
