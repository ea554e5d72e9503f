// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package qdrant stores indexed conversations in a Qdrant collection over gRPC.
//
// The collection uses cosine distance and is created on the first upsert,
// sized to that vector unless Config.Dimensions is set. Hits report
// distance as 1 - score, in the order the server returns them.
package qdrant
