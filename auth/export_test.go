package auth

// DummyPassword exposes the placeholder behind dummyHash to the external tests.
const DummyPassword = dummyPassword
